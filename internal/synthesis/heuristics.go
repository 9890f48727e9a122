package synthesis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/resilience2relief/backend/internal/taxonomy"
)

// sectorCost parameterizes the budget and timeline formulas per sector.
// Figures are rough Pacific-region recovery costs in USD.
type sectorCost struct {
	perBeneficiary    int64
	minBudget         int64
	maxBudget         int64
	monthlyBurn       int64
	baseBeneficiaries int
}

var sectorCosts = map[taxonomy.Sector]sectorCost{
	taxonomy.SectorInfrastructure: {perBeneficiary: 450, minBudget: 500_000, maxBudget: 50_000_000, monthlyBurn: 400_000, baseBeneficiaries: 20000},
	taxonomy.SectorHousing:        {perBeneficiary: 600, minBudget: 300_000, maxBudget: 30_000_000, monthlyBurn: 350_000, baseBeneficiaries: 8000},
	taxonomy.SectorAgriculture:    {perBeneficiary: 150, minBudget: 100_000, maxBudget: 10_000_000, monthlyBurn: 150_000, baseBeneficiaries: 12000},
	taxonomy.SectorHealth:         {perBeneficiary: 200, minBudget: 200_000, maxBudget: 15_000_000, monthlyBurn: 250_000, baseBeneficiaries: 25000},
	taxonomy.SectorEducation:      {perBeneficiary: 250, minBudget: 150_000, maxBudget: 12_000_000, monthlyBurn: 200_000, baseBeneficiaries: 6000},
	taxonomy.SectorEnvironment:    {perBeneficiary: 100, minBudget: 100_000, maxBudget: 8_000_000, monthlyBurn: 120_000, baseBeneficiaries: 15000},
	taxonomy.SectorEconomic:       {perBeneficiary: 300, minBudget: 200_000, maxBudget: 20_000_000, monthlyBurn: 300_000, baseBeneficiaries: 10000},
	taxonomy.SectorGovernance:     {perBeneficiary: 80, minBudget: 100_000, maxBudget: 5_000_000, monthlyBurn: 100_000, baseBeneficiaries: 30000},
}

// sectorResources are the ordered required-resource lists per sector.
var sectorResources = map[taxonomy.Sector][]string{
	taxonomy.SectorInfrastructure: {"Civil engineering teams", "Heavy construction equipment", "Construction materials", "Road and bridge survey crews"},
	taxonomy.SectorHousing:        {"Building materials", "Skilled construction labor", "Land tenure assessors", "Resilient design specialists"},
	taxonomy.SectorAgriculture:    {"Climate-resilient seed stock", "Farming tools and equipment", "Agricultural extension officers", "Irrigation supplies"},
	taxonomy.SectorHealth:         {"Medical supplies and equipment", "Clinical staff", "Cold-chain logistics", "Temporary clinic structures"},
	taxonomy.SectorEducation:      {"Temporary learning spaces", "Teaching materials", "Trained teachers", "School furniture"},
	taxonomy.SectorEnvironment:    {"Native seedlings and nursery stock", "Coastal restoration specialists", "Survey and mapping equipment"},
	taxonomy.SectorEconomic:       {"Small-business grant capital", "Livelihoods training staff", "Market infrastructure materials"},
	taxonomy.SectorGovernance:     {"Technical advisors", "Early warning system equipment", "Training and simulation budget"},
}

// sectorPartners are the default donor partners per sector, used when the
// context names no organizations.
var sectorPartners = map[taxonomy.Sector][]string{
	taxonomy.SectorInfrastructure: {"World Bank", "Asian Development Bank", "Australia DFAT"},
	taxonomy.SectorHousing:        {"UN-Habitat", "World Bank", "International Federation of Red Cross"},
	taxonomy.SectorAgriculture:    {"FAO", "IFAD", "Asian Development Bank"},
	taxonomy.SectorHealth:         {"WHO", "UNICEF", "Asian Development Bank"},
	taxonomy.SectorEducation:      {"UNICEF", "UNESCO", "Australia DFAT"},
	taxonomy.SectorEnvironment:    {"Green Climate Fund", "UNEP", "Global Environment Facility"},
	taxonomy.SectorEconomic:       {"UNDP", "World Bank", "International Labour Organization"},
	taxonomy.SectorGovernance:     {"UNDP", "Pacific Community", "Australia DFAT"},
}

var (
	beneficiaryRe = regexp.MustCompile(`(?i)([\d,]+)\s*(?:people|persons|households|families|residents|students|patients|communities)`)
	moneyRe       = regexp.MustCompile(`(?i)(?:USD|US\$|\$)\s?([\d,]+(?:\.\d+)?)\s?(million|billion|m|b|k)?`)
)

// estimateBeneficiaries reads a beneficiary count out of the context
// snippets, taking the largest figure found; absent that, the sector base.
func estimateBeneficiaries(sector taxonomy.Sector, snippets []string) int {
	best := 0
	for _, s := range snippets {
		for _, m := range beneficiaryRe.FindAllStringSubmatch(s, -1) {
			if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil && n > best {
				best = n
			}
		}
	}
	if best > 0 {
		return best
	}
	return sectorCosts[sector].baseBeneficiaries
}

// estimateBudget prefers comparable monetary figures from the context,
// falling back to beneficiaries x sector cost factor. Either path clamps
// to the sector bounds. The returned basis names which path was taken.
func estimateBudget(sector taxonomy.Sector, beneficiaries int, snippets []string) (int64, string) {
	costs := sectorCosts[sector]

	if historical := largestHistoricalFigure(snippets); historical > 0 {
		return clamp(historical, costs.minBudget, costs.maxBudget), "comparable historical figure"
	}

	return clamp(int64(beneficiaries)*costs.perBeneficiary, costs.minBudget, costs.maxBudget), "beneficiary cost model"
}

// estimateTimelineMonths divides the budget by the sector's monthly burn
// rate, clamped to [3, 60] months.
func estimateTimelineMonths(sector taxonomy.Sector, budget int64) int {
	burn := sectorCosts[sector].monthlyBurn
	months := budget / burn
	if months < 3 {
		return 3
	}
	if months > 60 {
		return 60
	}
	return int(months)
}

// largestHistoricalFigure parses monetary mentions from the snippets and
// returns the largest, in USD. Figures under 10k are ignored as noise
// (unit prices, per-household costs).
func largestHistoricalFigure(snippets []string) int64 {
	var best int64
	for _, s := range snippets {
		for _, m := range moneyRe.FindAllStringSubmatch(s, -1) {
			value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil {
				continue
			}
			switch strings.ToLower(m[2]) {
			case "billion", "b":
				value *= 1_000_000_000
			case "million", "m":
				value *= 1_000_000
			case "k":
				value *= 1_000
			}
			if v := int64(value); v >= 10_000 && v > best {
				best = v
			}
		}
	}
	return best
}

// severityKeywords raise the priority score within its band.
var severityKeywords = []string{
	"catastrophic", "destroyed", "devastat", "severe", "critical",
	"emergency", "urgent", "widespread", "casualties", "displaced",
}

// scorePriority maps a band to its numeric range and positions the score
// within the band by counting severity signals in the context. An explicit
// band from the request overrides the inferred one.
func scorePriority(explicit taxonomy.PriorityBand, contextText string) int {
	band := explicit
	if band == "" {
		band = taxonomy.ClassifyPriority(contextText)
	}

	hits := 0
	lower := strings.ToLower(contextText)
	for _, kw := range severityKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}

	switch band {
	case taxonomy.PriorityHigh:
		return 8 + minInt(hits, 2)
	case taxonomy.PriorityLow:
		return 1 + minInt(hits, 2)
	default:
		return 4 + minInt(hits, 3)
	}
}

// applyBudgetRange narrows a budget into the requested range where it
// overlaps the sector bounds.
func applyBudgetRange(budget int64, budgetRange taxonomy.BudgetRange, sector taxonomy.Sector) int64 {
	var lo, hi int64
	switch budgetRange {
	case taxonomy.BudgetUnder1M:
		lo, hi = 0, 1_000_000
	case taxonomy.Budget1MTo10M:
		lo, hi = 1_000_000, 10_000_000
	case taxonomy.Budget10To50M:
		lo, hi = 10_000_000, 50_000_000
	case taxonomy.BudgetOver50M:
		lo, hi = 50_000_000, 1_000_000_000
	default:
		return budget
	}

	costs := sectorCosts[sector]
	if lo < costs.minBudget {
		lo = costs.minBudget
	}
	if hi > costs.maxBudget {
		hi = costs.maxBudget
	}
	if lo > hi {
		// Requested range lies outside the sector bounds; the sector
		// bounds win.
		return budget
	}
	return clamp(budget, lo, hi)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

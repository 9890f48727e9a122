// Package taxonomy holds the closed vocabularies the pipeline classifies
// against: disaster types, geographic regions, recovery sectors, priority
// bands, and budget ranges. Filter values outside these vocabularies are
// rejected rather than passed through.
package taxonomy

import (
	"sort"
	"strings"
)

type DisasterType string

const (
	DisasterCyclone    DisasterType = "cyclone"
	DisasterEarthquake DisasterType = "earthquake"
	DisasterTsunami    DisasterType = "tsunami"
	DisasterFlood      DisasterType = "flood"
	DisasterDrought    DisasterType = "drought"
	DisasterVolcanic   DisasterType = "volcanic"
	DisasterWildfire   DisasterType = "wildfire"
	DisasterLandslide  DisasterType = "landslide"
)

type Sector string

const (
	SectorInfrastructure Sector = "infrastructure"
	SectorHousing        Sector = "housing"
	SectorAgriculture    Sector = "agriculture"
	SectorHealth         Sector = "health"
	SectorEducation      Sector = "education"
	SectorEnvironment    Sector = "environment"
	SectorEconomic       Sector = "economic"
	SectorGovernance     Sector = "governance"
)

type Region string

const (
	RegionVanuatu          Region = "vanuatu"
	RegionSamoa            Region = "samoa"
	RegionFiji             Region = "fiji"
	RegionTonga            Region = "tonga"
	RegionSolomonIslands   Region = "solomon_islands"
	RegionPapuaNewGuinea   Region = "papua_new_guinea"
	RegionMarshallIslands  Region = "marshall_islands"
	RegionPalau            Region = "palau"
	RegionMicronesia       Region = "micronesia"
	RegionNauru            Region = "nauru"
	RegionKiribati         Region = "kiribati"
	RegionTuvalu           Region = "tuvalu"
)

type PriorityBand string

const (
	PriorityHigh   PriorityBand = "high"
	PriorityMedium PriorityBand = "medium"
	PriorityLow    PriorityBand = "low"
)

type BudgetRange string

const (
	BudgetUnder1M BudgetRange = "under_1m"
	Budget1MTo10M BudgetRange = "1m_10m"
	Budget10To50M BudgetRange = "10m_50m"
	BudgetOver50M BudgetRange = "over_50m"
)

var disasterKeywords = map[DisasterType][]string{
	DisasterCyclone:    {"cyclone", "hurricane", "typhoon"},
	DisasterEarthquake: {"earthquake", "seismic", "aftershock"},
	DisasterTsunami:    {"tsunami", "tidal wave"},
	DisasterFlood:      {"flood", "flooding", "inundation"},
	DisasterDrought:    {"drought", "water shortage"},
	DisasterVolcanic:   {"volcanic", "volcano", "eruption", "ashfall"},
	DisasterWildfire:   {"wildfire", "bushfire", "forest fire"},
	DisasterLandslide:  {"landslide", "mudslide", "slope failure"},
}

var sectorKeywords = map[Sector][]string{
	SectorInfrastructure: {
		"road", "bridge", "port", "airport", "electricity", "power", "grid",
		"water supply", "sanitation", "sewage", "telecommunications", "internet",
	},
	SectorHousing: {
		"housing", "shelter", "residential", "accommodation", "home",
		"building", "reconstruction", "rebuild",
	},
	SectorAgriculture: {
		"agriculture", "farming", "crop", "livestock", "fishery", "aquaculture",
		"food security", "irrigation", "seed", "harvest",
	},
	SectorHealth: {
		"health", "hospital", "clinic", "medical", "healthcare", "medicine",
		"vaccination", "epidemic", "disease",
	},
	SectorEducation: {
		"education", "school", "university", "training", "capacity building",
		"teacher", "student", "learning",
	},
	SectorEnvironment: {
		"environment", "climate", "forest", "mangrove", "coral", "ecosystem",
		"biodiversity", "conservation", "restoration", "renewable energy",
	},
	SectorEconomic: {
		"economy", "economic", "business", "employment", "livelihood",
		"income", "poverty", "microfinance", "market", "trade",
	},
	SectorGovernance: {
		"governance", "government", "policy", "institution",
		"administration", "coordination", "planning",
	},
}

var regionKeywords = map[Region][]string{
	RegionVanuatu:         {"vanuatu", "port vila"},
	RegionSamoa:           {"samoa", "apia"},
	RegionFiji:            {"fiji", "suva"},
	RegionTonga:           {"tonga", "nuku'alofa"},
	RegionSolomonIslands:  {"solomon", "honiara"},
	RegionPapuaNewGuinea:  {"papua new guinea", "png", "port moresby"},
	RegionMarshallIslands: {"marshall islands", "majuro"},
	RegionPalau:           {"palau"},
	RegionMicronesia:      {"micronesia"},
	RegionNauru:           {"nauru"},
	RegionKiribati:        {"kiribati"},
	RegionTuvalu:          {"tuvalu"},
}

var priorityKeywords = map[PriorityBand][]string{
	PriorityHigh: {
		"emergency", "urgent", "critical", "immediate", "life-threatening",
		"essential", "vital", "catastrophic",
	},
	PriorityMedium: {
		"important", "significant", "necessary", "required", "needed",
		"beneficial", "recommended",
	},
	PriorityLow: {
		"optional", "future", "long-term", "enhancement", "supplementary",
	},
}

// SDGBySector maps each sector to the Sustainable Development Goal codes
// a project in that sector advances.
var SDGBySector = map[Sector][]int{
	SectorInfrastructure: {9, 11},
	SectorHousing:        {11},
	SectorAgriculture:    {2},
	SectorHealth:         {3},
	SectorEducation:      {4},
	SectorEnvironment:    {13, 15},
	SectorEconomic:       {1, 8},
	SectorGovernance:     {16},
}

func Sectors() []Sector {
	return sortedKeys(sectorKeywords)
}

func Regions() []Region {
	return sortedKeys(regionKeywords)
}

func DisasterTypes() []DisasterType {
	return sortedKeys(disasterKeywords)
}

func ValidSector(v string) bool       { _, ok := sectorKeywords[Sector(v)]; return ok }
func ValidRegion(v string) bool       { _, ok := regionKeywords[Region(v)]; return ok }
func ValidDisasterType(v string) bool { _, ok := disasterKeywords[DisasterType(v)]; return ok }

func ValidPriority(v string) bool {
	switch PriorityBand(v) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

func ValidBudgetRange(v string) bool {
	switch BudgetRange(v) {
	case BudgetUnder1M, Budget1MTo10M, Budget10To50M, BudgetOver50M:
		return true
	}
	return false
}

// ClassifySectors returns every sector whose keyword list matches the text,
// in stable sorted order.
func ClassifySectors(text string) []Sector {
	return matchKeywords(text, sectorKeywords)
}

func ClassifyRegions(text string) []Region {
	return matchKeywords(text, regionKeywords)
}

func ClassifyDisasterTypes(text string) []DisasterType {
	return matchKeywords(text, disasterKeywords)
}

// ClassifyPriority returns the strongest priority band whose keywords
// appear in the text. High outranks medium outranks low; the default on
// no signal is medium.
func ClassifyPriority(text string) PriorityBand {
	lower := strings.ToLower(text)
	for _, band := range []PriorityBand{PriorityHigh, PriorityMedium, PriorityLow} {
		for _, kw := range priorityKeywords[band] {
			if strings.Contains(lower, kw) {
				return band
			}
		}
	}
	return PriorityMedium
}

func matchKeywords[T ~string](text string, vocab map[T][]string) []T {
	lower := strings.ToLower(text)
	var matched []T
	for value, keywords := range vocab {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, value)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	return matched
}

func sortedKeys[T ~string, V any](m map[T]V) []T {
	keys := make([]T, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

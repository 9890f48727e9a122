// Package synthesis assembles structured recovery project proposals from
// retrieved reference context and request constraints. Every numeric
// estimate comes from an explicit formula so identical inputs always
// produce identical projects.
package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/generation"
	"github.com/resilience2relief/backend/internal/retriever"
	"github.com/resilience2relief/backend/internal/taxonomy"
	"github.com/resilience2relief/backend/pkg/logger"
	"github.com/resilience2relief/backend/pkg/utils"
)

// Constraints are the caller's filters, already validated upstream.
type Constraints struct {
	Sectors       []taxonomy.Sector
	Regions       []taxonomy.Region
	DisasterTypes []taxonomy.DisasterType
	Priority      taxonomy.PriorityBand
	BudgetRange   taxonomy.BudgetRange
}

// Provenance ties a project back to one retrieved segment.
type Provenance struct {
	SegmentID  string  `json:"segmentId"`
	DocumentID string  `json:"documentId"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
}

// Project is one synthesized proposal. Immutable once returned.
type Project struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Sectors        []taxonomy.Sector `json:"sectors"`
	Priority       int               `json:"priority"`
	BudgetUSD      int64             `json:"budgetUsd"`
	BudgetDisplay  string            `json:"budgetDisplay"`
	BudgetBasis    string            `json:"budgetBasis"`
	TimelineMonths int               `json:"timelineMonths"`
	Beneficiaries  int               `json:"beneficiaries"`
	Resources      []string          `json:"resources"`
	Partners       []string          `json:"partners"`
	SDGs           []string          `json:"sdgs"`
	Provenance     []Provenance      `json:"provenance,omitempty"`
}

// PartnerSuggester proposes partner organizations related to the ones the
// context already names. Optional collaborator; nil disables it.
type PartnerSuggester interface {
	SuggestPartners(ctx context.Context, organizations []string, limit int) ([]string, error)
}

type Synthesizer struct {
	generator generation.Generator
	partners  PartnerSuggester
}

func New(generator generation.Generator, partners PartnerSuggester) *Synthesizer {
	return &Synthesizer{generator: generator, partners: partners}
}

// Synthesize produces exactly count projects. Context segments are dealt
// round-robin over distinct documents so no single source dominates the
// batch; an empty context falls back to constraint-driven heuristics.
// Projects generate in parallel; the returned order is priority
// descending, ties by generation index.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, refs []retriever.Result, count int) ([]Project, error) {
	if count <= 0 {
		return nil, fmt.Errorf("project count must be positive, got %d", count)
	}
	return s.SynthesizeWithConstraints(ctx, query, Constraints{}, refs, count)
}

func (s *Synthesizer) SynthesizeWithConstraints(ctx context.Context, query string, constraints Constraints, retrieved []retriever.Result, count int) ([]Project, error) {
	if count <= 0 {
		return nil, fmt.Errorf("project count must be positive, got %d", count)
	}

	assignments := dealRoundRobin(retrieved, count)

	projects := make([]Project, count)
	errs := make([]error, count)

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			projects[i], errs[i] = s.buildProject(ctx, query, constraints, assignments[i])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Completion order is nondeterministic; the response order is not.
	order := make([]int, count)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if projects[order[a]].Priority != projects[order[b]].Priority {
			return projects[order[a]].Priority > projects[order[b]].Priority
		}
		return order[a] < order[b]
	})

	ordered := make([]Project, count)
	for i, idx := range order {
		ordered[i] = projects[idx]
	}

	logger.Info("Synthesis complete",
		zap.Int("projects", count),
		zap.Int("context_segments", len(retrieved)),
	)

	return ordered, nil
}

// dealRoundRobin distributes segments across project slots, cycling over
// distinct documents in score order so each project draws from different
// sources where possible.
func dealRoundRobin(retrieved []retriever.Result, count int) [][]retriever.Result {
	assignments := make([][]retriever.Result, count)

	// Group by document, preserving score order within and across groups.
	var docOrder []string
	byDoc := make(map[string][]retriever.Result)
	for _, r := range retrieved {
		if _, ok := byDoc[r.Document.ID]; !ok {
			docOrder = append(docOrder, r.Document.ID)
		}
		byDoc[r.Document.ID] = append(byDoc[r.Document.ID], r)
	}

	slot := 0
	for remaining := len(retrieved); remaining > 0; {
		for _, docID := range docOrder {
			if len(byDoc[docID]) == 0 {
				continue
			}
			assignments[slot%count] = append(assignments[slot%count], byDoc[docID][0])
			byDoc[docID] = byDoc[docID][1:]
			slot++
			remaining--
		}
	}

	return assignments
}

func (s *Synthesizer) buildProject(ctx context.Context, query string, constraints Constraints, refs []retriever.Result) (Project, error) {
	snippets := make([]string, len(refs))
	var contextText strings.Builder
	for i, r := range refs {
		snippets[i] = r.Segment.Text
		contextText.WriteString(r.Segment.Text)
		contextText.WriteString("\n")
	}

	sectors := resolveSectors(query, constraints, refs)
	primary := sectors[0]

	region := resolveRegion(constraints, refs, query)
	disaster := resolveDisaster(constraints, refs, query)

	beneficiaries := estimateBeneficiaries(primary, snippets)
	budget, basis := estimateBudget(primary, beneficiaries, snippets)
	budget = applyBudgetRange(budget, constraints.BudgetRange, primary)
	timeline := estimateTimelineMonths(primary, budget)

	priorityText := contextText.String()
	if priorityText == "" {
		priorityText = query
	}
	priority := scorePriority(constraints.Priority, priorityText)

	text, err := s.generator.GenerateProjectText(ctx, generation.Input{
		Query:          query,
		Sector:         primary,
		Region:         region,
		DisasterType:   disaster,
		Beneficiaries:  beneficiaries,
		BudgetUSD:      budget,
		TimelineMonths: timeline,
		Snippets:       snippets,
	})
	if err != nil {
		return Project{}, fmt.Errorf("failed to generate project text: %w", err)
	}

	provenance := make([]Provenance, len(refs))
	for i, r := range refs {
		provenance[i] = Provenance{
			SegmentID:  r.Segment.ID,
			DocumentID: r.Document.ID,
			Filename:   r.Document.Filename,
			Score:      r.Score,
		}
	}

	return Project{
		ID:             uuid.New().String(),
		Title:          text.Title,
		Description:    text.Description,
		Sectors:        sectors,
		Priority:       priority,
		BudgetUSD:      budget,
		BudgetDisplay:  utils.FormatCurrency(float64(budget)),
		BudgetBasis:    basis,
		TimelineMonths: timeline,
		Beneficiaries:  beneficiaries,
		Resources:      sectorResources[primary],
		Partners:       s.resolvePartners(ctx, primary, refs),
		SDGs:           sdgTags(sectors),
		Provenance:     provenance,
	}, nil
}

// sdgTags unions the SDG codes of every resolved sector, ascending.
func sdgTags(sectors []taxonomy.Sector) []string {
	seen := make(map[int]bool)
	var codes []int
	for _, sector := range sectors {
		for _, code := range taxonomy.SDGBySector[sector] {
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}
	sort.Ints(codes)

	tags := make([]string, len(codes))
	for i, code := range codes {
		tags[i] = fmt.Sprintf("SDG %d", code)
	}
	return tags
}

// resolveSectors unions the requested sectors with those extracted from
// the assigned context. Both empty falls back to keyword inference on the
// query, then infrastructure.
func resolveSectors(query string, constraints Constraints, refs []retriever.Result) []taxonomy.Sector {
	seen := make(map[taxonomy.Sector]bool)
	var sectors []taxonomy.Sector

	add := func(values ...taxonomy.Sector) {
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				sectors = append(sectors, v)
			}
		}
	}

	add(constraints.Sectors...)
	for _, r := range refs {
		add(r.Document.Sectors...)
	}

	if len(sectors) == 0 {
		add(taxonomy.ClassifySectors(query)...)
	}
	if len(sectors) == 0 {
		add(taxonomy.SectorInfrastructure)
	}

	return sectors
}

func resolveRegion(constraints Constraints, refs []retriever.Result, query string) taxonomy.Region {
	if len(constraints.Regions) > 0 {
		return constraints.Regions[0]
	}
	for _, r := range refs {
		if len(r.Document.Regions) > 0 {
			return r.Document.Regions[0]
		}
	}
	if inferred := taxonomy.ClassifyRegions(query); len(inferred) > 0 {
		return inferred[0]
	}
	return ""
}

func resolveDisaster(constraints Constraints, refs []retriever.Result, query string) taxonomy.DisasterType {
	if len(constraints.DisasterTypes) > 0 {
		return constraints.DisasterTypes[0]
	}
	for _, r := range refs {
		if len(r.Document.DisasterTypes) > 0 {
			return r.Document.DisasterTypes[0]
		}
	}
	if inferred := taxonomy.ClassifyDisasterTypes(query); len(inferred) > 0 {
		return inferred[0]
	}
	return ""
}

// resolvePartners orders context organizations first, then co-occurrence
// suggestions, then sector donor defaults, capped at six.
func (s *Synthesizer) resolvePartners(ctx context.Context, sector taxonomy.Sector, refs []retriever.Result) []string {
	const maxPartners = 6

	seen := make(map[string]bool)
	var partners []string
	add := func(names ...string) {
		for _, n := range names {
			key := strings.ToLower(n)
			if n != "" && !seen[key] && len(partners) < maxPartners {
				seen[key] = true
				partners = append(partners, n)
			}
		}
	}

	var contextOrgs []string
	for _, r := range refs {
		contextOrgs = append(contextOrgs, r.Document.Entities.Organizations...)
	}
	sort.Strings(contextOrgs)
	add(contextOrgs...)

	if s.partners != nil && len(contextOrgs) > 0 && len(partners) < maxPartners {
		suggested, err := s.partners.SuggestPartners(ctx, contextOrgs, maxPartners-len(partners))
		if err != nil {
			logger.Warn("Partner suggestion failed", zap.Error(err))
		} else {
			add(suggested...)
		}
	}

	add(sectorPartners[sector]...)
	return partners
}

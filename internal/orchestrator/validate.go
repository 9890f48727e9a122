package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/resilience2relief/backend/internal/synthesis"
	"github.com/resilience2relief/backend/internal/taxonomy"
)

const (
	minQueryLength = 10
	maxQueryLength = 500
	minProjects    = 1
	maxProjects    = 10
)

var (
	// ErrInvalidQuery rejects queries that are empty or too short to act on.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidCount rejects project counts outside [1, 10].
	ErrInvalidCount = errors.New("invalid project count")

	// ErrInvalidFilter rejects filter values outside the known vocabularies.
	ErrInvalidFilter = errors.New("invalid filter value")

	// ErrTimeout reports that the request deadline elapsed before a full
	// result was ready. No partial results are returned.
	ErrTimeout = errors.New("request timed out")
)

// GenerateRequest is the caller-facing generate payload.
type GenerateRequest struct {
	Query         string   `json:"query"`
	Sectors       []string `json:"sectors,omitempty"`
	Regions       []string `json:"regions,omitempty"`
	DisasterTypes []string `json:"disasterTypes,omitempty"`
	MaxProjects   int      `json:"maxProjects"`
	BudgetRange   string   `json:"budgetRange,omitempty"`
	Priority      string   `json:"priority,omitempty"`
}

// validate checks the request and resolves its filters into typed
// constraints. Filter errors name the offending value.
func validate(req *GenerateRequest) (synthesis.Constraints, error) {
	query := strings.TrimSpace(req.Query)
	if len(query) < minQueryLength {
		return synthesis.Constraints{}, fmt.Errorf("%w: query must be at least %d characters", ErrInvalidQuery, minQueryLength)
	}
	if len(query) > maxQueryLength {
		return synthesis.Constraints{}, fmt.Errorf("%w: query must be at most %d characters", ErrInvalidQuery, maxQueryLength)
	}

	if req.MaxProjects < minProjects || req.MaxProjects > maxProjects {
		return synthesis.Constraints{}, fmt.Errorf("%w: maxProjects must be in [%d, %d], got %d",
			ErrInvalidCount, minProjects, maxProjects, req.MaxProjects)
	}

	var constraints synthesis.Constraints

	for _, s := range req.Sectors {
		sector := strings.ToLower(strings.TrimSpace(s))
		if !taxonomy.ValidSector(sector) {
			return synthesis.Constraints{}, fmt.Errorf("%w: unknown sector %q", ErrInvalidFilter, s)
		}
		constraints.Sectors = append(constraints.Sectors, taxonomy.Sector(sector))
	}

	for _, r := range req.Regions {
		region := strings.ToLower(strings.TrimSpace(r))
		if !taxonomy.ValidRegion(region) {
			return synthesis.Constraints{}, fmt.Errorf("%w: unknown region %q", ErrInvalidFilter, r)
		}
		constraints.Regions = append(constraints.Regions, taxonomy.Region(region))
	}

	for _, d := range req.DisasterTypes {
		disaster := strings.ToLower(strings.TrimSpace(d))
		if !taxonomy.ValidDisasterType(disaster) {
			return synthesis.Constraints{}, fmt.Errorf("%w: unknown disaster type %q", ErrInvalidFilter, d)
		}
		constraints.DisasterTypes = append(constraints.DisasterTypes, taxonomy.DisasterType(disaster))
	}

	if req.Priority != "" {
		band := strings.ToLower(strings.TrimSpace(req.Priority))
		if !taxonomy.ValidPriority(band) {
			return synthesis.Constraints{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidFilter, req.Priority)
		}
		constraints.Priority = taxonomy.PriorityBand(band)
	}

	if req.BudgetRange != "" {
		budget := strings.ToLower(strings.TrimSpace(req.BudgetRange))
		if !taxonomy.ValidBudgetRange(budget) {
			return synthesis.Constraints{}, fmt.Errorf("%w: unknown budget range %q", ErrInvalidFilter, req.BudgetRange)
		}
		constraints.BudgetRange = taxonomy.BudgetRange(budget)
	}

	return constraints, nil
}

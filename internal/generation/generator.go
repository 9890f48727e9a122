// Package generation provides the text-generation capability behind
// project synthesis. The template backend is fully deterministic; the
// openai backend produces richer prose and degrades to the template on
// upstream failure.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/resilience2relief/backend/internal/taxonomy"
	"github.com/resilience2relief/backend/pkg/config"
)

// Input carries everything a backend may use to write a project's title
// and description.
type Input struct {
	Query          string
	Sector         taxonomy.Sector
	Region         taxonomy.Region
	DisasterType   taxonomy.DisasterType
	Beneficiaries  int
	BudgetUSD      int64
	TimelineMonths int
	Snippets       []string
}

// Output is the generated text for one project.
type Output struct {
	Title       string
	Description string
}

// Generator writes project text. Implementations must be safe for
// concurrent use; synthesis generates projects in parallel.
type Generator interface {
	GenerateProjectText(ctx context.Context, in Input) (Output, error)
	Name() string
}

// NewGenerator selects a backend from configuration.
func NewGenerator(cfg config.GeneratorConfig) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIGenerator(cfg), nil
	case "template", "":
		return NewTemplateGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown generator provider: %s (supported: template, openai)", cfg.Provider)
	}
}

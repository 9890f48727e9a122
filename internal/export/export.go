// Package export renders synthesized projects for download. Export is a
// pure function of its input.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/resilience2relief/backend/internal/synthesis"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat reports an unsupported export format.
type ErrUnknownFormat struct {
	Format string
}

func (e *ErrUnknownFormat) Error() string {
	return fmt.Sprintf("unknown export format: %q (supported: json, markdown)", e.Format)
}

// Export renders the projects in the requested format and returns the
// bytes plus the matching content type.
func Export(projects []synthesis.Project, format Format) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(projects, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal projects: %w", err)
		}
		return data, "application/json", nil
	case FormatMarkdown:
		return []byte(renderMarkdown(projects)), "text/markdown", nil
	default:
		return nil, "", &ErrUnknownFormat{Format: string(format)}
	}
}

func renderMarkdown(projects []synthesis.Project) string {
	var b strings.Builder

	b.WriteString("# Disaster Recovery Project Proposals\n")
	fmt.Fprintf(&b, "\n%d project(s)\n", len(projects))

	for i, p := range projects {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, p.Title)
		fmt.Fprintf(&b, "%s\n\n", p.Description)

		fmt.Fprintf(&b, "- **Sectors**: %s\n", joinSectors(p))
		fmt.Fprintf(&b, "- **Priority**: %d/10\n", p.Priority)
		fmt.Fprintf(&b, "- **Budget**: %s (%s)\n", p.BudgetDisplay, p.BudgetBasis)
		fmt.Fprintf(&b, "- **Timeline**: %d months\n", p.TimelineMonths)
		fmt.Fprintf(&b, "- **Beneficiaries**: %d\n", p.Beneficiaries)

		if len(p.SDGs) > 0 {
			fmt.Fprintf(&b, "- **SDG alignment**: %s\n", strings.Join(p.SDGs, ", "))
		}
		if len(p.Partners) > 0 {
			fmt.Fprintf(&b, "- **Potential partners**: %s\n", strings.Join(p.Partners, ", "))
		}
		if len(p.Resources) > 0 {
			b.WriteString("- **Required resources**:\n")
			for _, r := range p.Resources {
				fmt.Fprintf(&b, "  - %s\n", r)
			}
		}
		if len(p.Provenance) > 0 {
			b.WriteString("- **Sources**:\n")
			for _, prov := range p.Provenance {
				fmt.Fprintf(&b, "  - %s (score %.3f)\n", prov.Filename, prov.Score)
			}
		}
	}

	return b.String()
}

func joinSectors(p synthesis.Project) string {
	parts := make([]string, len(p.Sectors))
	for i, s := range p.Sectors {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/resilience2relief/backend/internal/taxonomy"
	"github.com/resilience2relief/backend/pkg/utils"
)

// sectorTitleNouns drive the deterministic title per sector.
var sectorTitleNouns = map[taxonomy.Sector]string{
	taxonomy.SectorInfrastructure: "Infrastructure Rehabilitation",
	taxonomy.SectorHousing:        "Resilient Housing Reconstruction",
	taxonomy.SectorAgriculture:    "Agricultural Recovery and Food Security",
	taxonomy.SectorHealth:         "Health Services Restoration",
	taxonomy.SectorEducation:      "School Rebuilding and Education Continuity",
	taxonomy.SectorEnvironment:    "Ecosystem Restoration",
	taxonomy.SectorEconomic:       "Livelihoods and Economic Recovery",
	taxonomy.SectorGovernance:     "Disaster Governance Strengthening",
}

// TemplateGenerator renders project text from fixed templates. Identical
// input always yields identical output.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) Name() string {
	return "template"
}

func (g *TemplateGenerator) GenerateProjectText(_ context.Context, in Input) (Output, error) {
	noun := sectorTitleNouns[in.Sector]
	if noun == "" {
		noun = "Disaster Recovery"
	}

	title := fmt.Sprintf("%s Programme", noun)
	if in.Region != "" {
		title = fmt.Sprintf("%s, %s", title, regionDisplay(in.Region))
	}

	var b strings.Builder
	if in.DisasterType != "" && in.Region != "" {
		fmt.Fprintf(&b, "Post-%s recovery initiative for %s focused on the %s sector. ",
			in.DisasterType, regionDisplay(in.Region), in.Sector)
	} else if in.Region != "" {
		fmt.Fprintf(&b, "Recovery initiative for %s focused on the %s sector. ",
			regionDisplay(in.Region), in.Sector)
	} else {
		fmt.Fprintf(&b, "Disaster recovery initiative focused on the %s sector. ", in.Sector)
	}

	fmt.Fprintf(&b, "The programme targets an estimated %s direct beneficiaries with a budget of %s over %d months. ",
		formatCount(in.Beneficiaries), utils.FormatCurrency(float64(in.BudgetUSD)), in.TimelineMonths)

	if len(in.Snippets) > 0 {
		b.WriteString("Design draws on documented needs: ")
		b.WriteString(truncate(in.Snippets[0], 240))
	} else {
		b.WriteString("Scope follows standard sector recovery practice for the stated needs: ")
		b.WriteString(truncate(in.Query, 240))
	}

	return Output{Title: title, Description: b.String()}, nil
}

func regionDisplay(r taxonomy.Region) string {
	parts := strings.Split(string(r), "_")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func formatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return s[:cut] + "..."
}

package ingestion

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"

	"github.com/resilience2relief/backend/internal/storage/models"
	"github.com/resilience2relief/backend/internal/taxonomy"
)

var (
	amountRe = regexp.MustCompile(`(?i)(?:USD|US\$|\$|AUD|NZD|EUR|FJD)\s?[\d,]+(?:\.\d+)?\s?(?:million|billion|m|b|k)?`)
	dateRe   = regexp.MustCompile(`(?i)\b(?:\d{1,2}\s)?(?:january|february|march|april|may|june|july|august|september|october|november|december)\s\d{4}\b|\b\d{4}-\d{2}-\d{2}\b|\b(?:19|20)\d{2}\b`)
	orgRe    = regexp.MustCompile(`\b(?:[A-Z][a-z]+\s)*(?:Bank|Programme|Program|Organisation|Organization|Agency|Ministry|Department|Commission|Secretariat|Fund|Office|Council|Cross)\b|\b[A-Z]{2,6}\b`)
)

// orgStopwords are all-caps tokens the acronym pattern matches that are
// not organizations.
var orgStopwords = map[string]bool{
	"USD": true, "AUD": true, "NZD": true, "EUR": true, "FJD": true,
	"GDP": true, "PDF": true, "CSV": true, "HTML": true, "XLSX": true,
	"II": true, "III": true, "IV": true,
}

// ExtractMetadata classifies document text against the controlled
// vocabularies and pulls out organization, amount, and date mentions.
func ExtractMetadata(text string) (sectors []taxonomy.Sector, regions []taxonomy.Region, disasters []taxonomy.DisasterType, entities models.Entities) {
	sectors = taxonomy.ClassifySectors(text)
	regions = taxonomy.ClassifyRegions(text)
	disasters = taxonomy.ClassifyDisasterTypes(text)

	entities = models.Entities{
		Organizations: extractOrganizations(text),
		Amounts:       dedupe(amountRe.FindAllString(text, 50)),
		Dates:         dedupe(dateRe.FindAllString(text, 50)),
	}

	return sectors, regions, disasters, entities
}

// extractOrganizations combines NER output with pattern matches. NER
// failure degrades to patterns alone.
func extractOrganizations(text string) []string {
	seen := make(map[string]bool)
	var orgs []string

	add := func(name string) {
		name = strings.TrimSpace(name)
		// NER returns sentence-initial articles as part of the entity.
		for _, article := range []string{"The ", "A ", "An "} {
			name = strings.TrimPrefix(name, article)
		}
		if name == "" || orgStopwords[strings.ToUpper(name)] {
			return
		}
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			orgs = append(orgs, name)
		}
	}

	// NER over a bounded prefix; tagging large documents is slow and the
	// recurring actors appear early.
	sample := truncateAtRune(text, 20000)
	if doc, err := prose.NewDocument(sample); err == nil {
		for _, ent := range doc.Entities() {
			if ent.Label == "ORG" || ent.Label == "GPE" {
				add(ent.Text)
			}
		}
	}

	for _, m := range orgRe.FindAllString(text, 100) {
		add(m)
	}

	sort.Strings(orgs)
	if len(orgs) > 30 {
		orgs = orgs[:30]
	}
	return orgs
}

// truncateAtRune cuts s to at most max bytes without splitting a UTF-8
// sequence.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func dedupe(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v != "" && !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

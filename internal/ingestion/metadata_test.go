package ingestion

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/resilience2relief/backend/internal/taxonomy"
)

const pdnaSample = `Post-Disaster Needs Assessment, Tropical Cyclone Pam, Vanuatu.
The cyclone destroyed housing across Shefa province in March 2015.
Total recovery needs were estimated at USD 316 million, with the
World Bank and the Asian Development Bank contributing financing.
Reconstruction of schools continued through 2017.`

func TestExtractMetadataClassification(t *testing.T) {
	sectors, regions, disasters, _ := ExtractMetadata(pdnaSample)

	assert.Contains(t, sectors, taxonomy.SectorHousing)
	assert.Contains(t, sectors, taxonomy.SectorEducation)
	assert.Equal(t, []taxonomy.Region{taxonomy.RegionVanuatu}, regions)
	assert.Equal(t, []taxonomy.DisasterType{taxonomy.DisasterCyclone}, disasters)
}

func TestExtractMetadataEntities(t *testing.T) {
	_, _, _, entities := ExtractMetadata(pdnaSample)

	assert.Contains(t, entities.Organizations, "World Bank")
	assert.Contains(t, entities.Organizations, "Asian Development Bank")
	assert.Contains(t, entities.Amounts, "USD 316 million")
	assert.Contains(t, entities.Dates, "March 2015")
}

func TestExtractMetadataEmptyText(t *testing.T) {
	sectors, regions, disasters, entities := ExtractMetadata("")

	assert.Empty(t, sectors)
	assert.Empty(t, regions)
	assert.Empty(t, disasters)
	assert.Empty(t, entities.Organizations)
	assert.Empty(t, entities.Amounts)
	assert.Empty(t, entities.Dates)
}

func TestExtractOrganizationsFiltersCurrencyCodes(t *testing.T) {
	_, _, _, entities := ExtractMetadata("The grant of USD 50,000 and AUD 20,000 came from UNICEF.")

	assert.Contains(t, entities.Organizations, "UNICEF")
	assert.NotContains(t, entities.Organizations, "USD")
	assert.NotContains(t, entities.Organizations, "AUD")
}

func TestExtractOrganizationsDeduplicates(t *testing.T) {
	text := "The World Bank funded phase one. The World Bank also funded phase two."
	_, _, _, entities := ExtractMetadata(text)

	count := 0
	for _, org := range entities.Organizations {
		if org == "World Bank" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Sentence-initial articles are not part of the name.
	assert.NotContains(t, entities.Organizations, "The World Bank")
}

func TestTruncateAtRune(t *testing.T) {
	assert.Equal(t, "short", truncateAtRune("short", 100))

	// "é" is two bytes; a cut landing inside it moves back to the rune
	// start so the result stays valid UTF-8.
	s := "abcé"
	cut := truncateAtRune(s, 4)
	assert.Equal(t, "abc", cut)
	assert.True(t, utf8.ValidString(truncateAtRune(s, 5)))
	assert.Equal(t, s, truncateAtRune(s, 5))
}

func TestStripBoilerplate(t *testing.T) {
	text := `Recovery Framework Vanuatu
Housing damage was extensive in coastal villages.
Page 1 of 12
Schools require structural repairs.
2
Agricultural losses affect food security.`

	cleaned := stripBoilerplate(text)
	assert.NotContains(t, cleaned, "Page 1 of 12")
	assert.NotContains(t, cleaned, "\n2\n")
	assert.Contains(t, cleaned, "Housing damage was extensive")
	assert.Contains(t, cleaned, "Agricultural losses")
}

func TestStripBoilerplateKeepsBlankLines(t *testing.T) {
	var b []string
	for i := 0; i < 8; i++ {
		b = append(b, "Paragraph about recovery needs in district number "+string(rune('0'+i))+".", "")
	}
	text := ""
	for _, l := range b {
		text += l + "\n"
	}

	cleaned := stripBoilerplate(text)
	assert.Contains(t, cleaned, ".\n\nParagraph", "paragraph breaks must survive")
}

func TestStripBoilerplateRepeatedHeaders(t *testing.T) {
	header := "MINISTRY OF CLIMATE CHANGE ADAPTATION"
	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, header, "Content line about sector recovery progress and remaining needs number "+string(rune('a'+i))+".")
	}
	text := ""
	for _, l := range lines {
		text += l + "\n"
	}

	cleaned := stripBoilerplate(text)
	assert.NotContains(t, cleaned, header)
	assert.Contains(t, cleaned, "Content line about sector recovery")
}

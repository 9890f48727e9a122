package ingestion

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExtractPlainText(t *testing.T) {
	text, err := ExtractText("report.txt", []byte("Cyclone damage summary.\n\nHousing losses were severe.\n"))
	require.NoError(t, err)
	assert.Equal(t, "Cyclone damage summary.\nHousing losses were severe.", text)
}

func TestExtractMarkdown(t *testing.T) {
	text, err := ExtractText("notes.md", []byte("# Assessment\n\nRoads   and bridges\tdamaged.\n"))
	require.NoError(t, err)
	assert.Contains(t, text, "Roads and bridges damaged.")
}

func TestExtractRejectsBinaryText(t *testing.T) {
	_, err := ExtractText("data.txt", []byte{0x00, 0x01, 0x02, 'a', 'b'})
	assert.ErrorIs(t, err, ErrCorruptContent)
}

func TestExtractHTML(t *testing.T) {
	html := `<html><head><script>var x = 1;</script><style>p{}</style></head>
	<body><nav>menu</nav><p>Reconstruction of the hospital began in 2016.</p><footer>copyright</footer></body></html>`

	text, err := ExtractText("page.html", []byte(html))
	require.NoError(t, err)
	assert.Contains(t, text, "Reconstruction of the hospital began in 2016.")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "menu")
	assert.NotContains(t, text, "copyright")
}

func TestExtractCSV(t *testing.T) {
	csvData := "region,sector,amount\nvanuatu,housing,1200000\nfiji,health,800000\n"

	text, err := ExtractText("grants.csv", []byte(csvData))
	require.NoError(t, err)
	assert.Contains(t, text, "vanuatu, housing, 1200000")
	assert.Contains(t, text, "fiji, health, 800000")
}

func TestExtractDOCX(t *testing.T) {
	content := buildDOCX(t, []string{
		"Post-disaster needs assessment for Tropical Cyclone Pam.",
		"Total damage is estimated at USD 449 million.",
	})

	text, err := ExtractText("pdna.docx", content)
	require.NoError(t, err)
	assert.Contains(t, text, "Tropical Cyclone Pam")
	assert.Contains(t, text, "USD 449 million")
}

func TestExtractDOCXCorrupt(t *testing.T) {
	_, err := ExtractText("broken.docx", []byte("not a zip archive"))
	assert.ErrorIs(t, err, ErrCorruptContent)
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "sector"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "budget"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "agriculture"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "USD 2.5 million"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	text, err := ExtractText("budget.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Contains(t, text, "agriculture, USD 2.5 million")
}

func TestExtractPDFCorrupt(t *testing.T) {
	_, err := ExtractText("broken.pdf", []byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrCorruptContent)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := ExtractText("archive.tar.gz", []byte("data"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractEmptyContent(t *testing.T) {
	_, err := ExtractText("empty.txt", []byte("   \n\n\t  \n"))
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "txt", Format("report.TXT"))
	assert.Equal(t, "html", Format("page.htm"))
	assert.Equal(t, "pdf", Format("doc.pdf"))
	assert.Equal(t, "", Format("archive.zip"))
	assert.Equal(t, "", Format("noextension"))
}

// buildDOCX assembles a minimal OOXML archive with one paragraph per
// input string.
func buildDOCX(t *testing.T, paragraphs []string) []byte {
	t.Helper()

	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>")
		body.WriteString(p)
		body.WriteString("</w:t></w:r></w:p>")
	}
	body.WriteString("</w:body></w:document>")

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write(body.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

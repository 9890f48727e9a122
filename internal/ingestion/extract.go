package ingestion

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// SupportedFormats lists the file extensions the pipeline accepts, without
// the leading dot.
var SupportedFormats = []string{"csv", "docx", "html", "md", "pdf", "txt", "xlsx"}

// ExtractText converts raw file bytes into plain text based on the file
// extension. Returns ErrUnsupportedFormat, ErrCorruptContent, or
// ErrEmptyContent as appropriate.
func ExtractText(filename string, content []byte) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	var (
		text string
		err  error
	)

	switch format {
	case "txt", "md":
		text, err = extractPlain(content)
	case "html", "htm":
		text, err = extractHTML(content)
	case "docx":
		text, err = extractDOCX(content)
	case "csv":
		text, err = extractCSV(content)
	case "xlsx":
		text, err = extractXLSX(content)
	case "pdf":
		text, err = extractPDF(content)
	default:
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return "", err
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return "", ErrEmptyContent
	}

	return text, nil
}

// Format returns the normalized format label for a filename, or "" when
// the extension is unsupported.
func Format(filename string) string {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if format == "htm" {
		format = "html"
	}
	for _, f := range SupportedFormats {
		if f == format {
			return format
		}
	}
	return ""
}

func extractPlain(content []byte) (string, error) {
	if !isMostlyText(content) {
		return "", fmt.Errorf("%w: binary data in text file", ErrCorruptContent)
	}
	return string(content), nil
}

func extractHTML(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	return text, nil
}

// extractDOCX reads word/document.xml out of the OOXML archive and joins
// paragraph runs with newlines.
func extractDOCX(content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptContent, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptContent, err)
		}

		return parseDocumentXML(data)
	}

	return "", fmt.Errorf("%w: missing word/document.xml", ErrCorruptContent)
}

type documentXML struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []struct {
					Content string `xml:",chardata"`
				} `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func parseDocumentXML(data []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, t := range run.Text {
				b.WriteString(t.Content)
			}
		}
	}

	return b.String(), nil
}

// extractCSV flattens rows into lines, cells joined by ", " so sentence
// segmentation keeps row contents together.
func extractCSV(content []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptContent, err)
		}
		b.WriteString(strings.Join(record, ", "))
		b.WriteString("\n")
	}

	return b.String(), nil
}

func extractXLSX(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			b.WriteString(strings.Join(row, ", "))
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

func extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptContent, err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}

		b.WriteString(text)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// isMostlyText rejects content with NUL bytes or a high share of
// non-printable bytes.
func isMostlyText(content []byte) bool {
	if len(content) == 0 {
		return true
	}

	nonPrintable := 0
	for _, c := range content {
		if c == 0 {
			return false
		}
		if c < 32 && c != '\n' && c != '\r' && c != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(len(content)) < 0.1
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
	}

	var kept []string
	for _, line := range lines {
		if line != "" {
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "\n")
}

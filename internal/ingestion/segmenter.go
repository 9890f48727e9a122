package ingestion

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// Segmenter slices document text into overlapping windows aligned to
// sentence boundaries.
type Segmenter struct {
	size    int
	overlap int
}

func NewSegmenter(size, overlap int) *Segmenter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Segmenter{size: size, overlap: overlap}
}

// Piece is one segment of text with its byte offsets into the source
// document.
type Piece struct {
	Text        string
	StartOffset int
	EndOffset   int
}

// span is a sentence located within the source text.
type span struct {
	text  string
	start int
	end   int
}

// Segment packs sentences into windows of at most size bytes, carrying
// roughly overlap bytes of trailing sentences into the next window. A
// sentence longer than the window becomes its own segment rather than
// being split mid-sentence.
func (s *Segmenter) Segment(text string) []Piece {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var pieces []Piece
	i := 0
	for i < len(sentences) {
		start := i
		length := 0
		for i < len(sentences) {
			sentLen := len(sentences[i].text)
			if length > 0 && length+sentLen+1 > s.size {
				break
			}
			length += sentLen
			if length > 0 {
				length++ // joining space
			}
			i++
		}

		pieces = append(pieces, buildPiece(sentences[start:i]))

		if i >= len(sentences) {
			break
		}

		// Walk back to include trailing sentences as overlap. The next
		// window must start after this one, so the walk-back stops
		// short of start.
		back := i
		overlapLen := 0
		for back > start+1 {
			next := len(sentences[back-1].text)
			if overlapLen+next > s.overlap {
				break
			}
			overlapLen += next
			back--
		}
		if back > start && back < i {
			i = back
		}
	}

	return pieces
}

func buildPiece(sentences []span) Piece {
	parts := make([]string, len(sentences))
	for i, s := range sentences {
		parts[i] = s.text
	}
	return Piece{
		Text:        strings.Join(parts, " "),
		StartOffset: sentences[0].start,
		EndOffset:   sentences[len(sentences)-1].end,
	}
}

// splitSentences locates sentence boundaries with prose and maps each
// sentence back to its byte offsets in the source. Falls back to
// newline-delimited lines when segmentation fails.
func splitSentences(text string) []span {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return splitLines(text)
	}

	var spans []span
	cursor := 0
	for _, sent := range doc.Sentences() {
		trimmed := strings.TrimSpace(sent.Text)
		if trimmed == "" {
			continue
		}
		idx := strings.Index(text[cursor:], trimmed)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		end := start + len(trimmed)
		spans = append(spans, span{text: trimmed, start: start, end: end})
		cursor = end
	}

	if len(spans) == 0 {
		return splitLines(text)
	}
	return spans
}

func splitLines(text string) []span {
	var spans []span
	cursor := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			idx := strings.Index(text[cursor:], trimmed)
			if idx >= 0 {
				start := cursor + idx
				spans = append(spans, span{text: trimmed, start: start, end: start + len(trimmed)})
			}
		}
		cursor += len(line) + 1
	}
	return spans
}

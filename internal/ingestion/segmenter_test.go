package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentShortText(t *testing.T) {
	s := NewSegmenter(1000, 200)

	pieces := s.Segment("A single short sentence about recovery planning.")
	require.Len(t, pieces, 1)
	assert.Equal(t, "A single short sentence about recovery planning.", pieces[0].Text)
	assert.Equal(t, 0, pieces[0].StartOffset)
	assert.Equal(t, len(pieces[0].Text), pieces[0].EndOffset)
}

func TestSegmentEmptyText(t *testing.T) {
	s := NewSegmenter(1000, 200)
	assert.Empty(t, s.Segment(""))
	assert.Empty(t, s.Segment("   \n\t  "))
}

func TestSegmentRespectsSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "Sentence number %d describes one distinct recovery activity in detail. ", i)
	}
	text := b.String()

	s := NewSegmenter(300, 60)
	pieces := s.Segment(text)
	require.Greater(t, len(pieces), 1)

	for _, p := range pieces {
		assert.LessOrEqual(t, len(p.Text), 300)
		assert.NotEmpty(t, p.Text)
	}
}

func TestSegmentOffsetsPointIntoSource(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "Activity %d covers repairs in district %d. ", i, i)
	}
	text := b.String()

	s := NewSegmenter(200, 40)
	for _, p := range s.Segment(text) {
		require.GreaterOrEqual(t, p.StartOffset, 0)
		require.LessOrEqual(t, p.EndOffset, len(text))
		require.Less(t, p.StartOffset, p.EndOffset)

		// The window starts and ends on sentence text from the source.
		window := text[p.StartOffset:p.EndOffset]
		first := strings.SplitN(p.Text, " ", 2)[0]
		assert.True(t, strings.HasPrefix(window, first))
	}
}

func TestSegmentOverlapCarriesSentences(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "Item %02d is a short sentence. ", i)
	}

	s := NewSegmenter(150, 50)
	pieces := s.Segment(b.String())
	require.Greater(t, len(pieces), 1)

	// Consecutive windows share trailing sentences.
	for i := 1; i < len(pieces); i++ {
		assert.Less(t, pieces[i].StartOffset, pieces[i-1].EndOffset,
			"window %d should start inside window %d", i, i-1)
	}
}

func TestSegmentOversizedSentence(t *testing.T) {
	long := "This sentence keeps going " + strings.Repeat("and going ", 40) + "until it ends."

	s := NewSegmenter(100, 20)
	pieces := s.Segment(long)
	require.Len(t, pieces, 1)
	assert.Equal(t, strings.TrimSpace(long), pieces[0].Text)
}

func TestSegmentAdvancesPastUnbreakableRun(t *testing.T) {
	// A short sentence followed by a long unpunctuated run (a table row,
	// for instance) must not stall the window cursor: the run cannot fit
	// after the first sentence and the overlap walk-back must not rewind
	// to the window start.
	text := "Short opening sentence here. " + strings.Repeat("word ", 200)

	s := NewSegmenter(1000, 200)
	pieces := s.Segment(text)
	require.GreaterOrEqual(t, len(pieces), 2)

	for i := 1; i < len(pieces); i++ {
		assert.Greater(t, pieces[i].StartOffset, pieces[i-1].StartOffset,
			"window %d must start after window %d", i, i-1)
	}
	assert.Contains(t, pieces[0].Text, "Short opening sentence here.")
	assert.Contains(t, pieces[len(pieces)-1].Text, "word word")
}

func TestSegmenterDefaults(t *testing.T) {
	s := NewSegmenter(0, -1)
	assert.Equal(t, 1000, s.size)
	assert.Equal(t, 200, s.overlap)

	// Overlap must stay below size.
	s = NewSegmenter(100, 100)
	assert.Equal(t, 20, s.overlap)
}

func TestSegmentDeterministic(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "Recovery milestone %d was reached on schedule. ", i)
	}
	text := b.String()

	s := NewSegmenter(250, 50)
	first := s.Segment(text)
	second := s.Segment(text)
	assert.Equal(t, first, second)
}

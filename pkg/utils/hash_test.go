package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	a := HashString("some document text")
	b := HashString("some document text")
	c := HashString("different text")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}

func TestHashBytesMatchesHashString(t *testing.T) {
	assert.Equal(t, HashString("payload"), HashBytes([]byte("payload")))
}

func TestCleanFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", CleanFilename("report.pdf"))
	assert.Equal(t, "a_b_c.txt", CleanFilename(`a/b\c.txt`))
	assert.Equal(t, "q_.txt", CleanFilename("<q>.txt"))
	assert.Equal(t, "name.txt", CleanFilename("___name.txt"))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "USD 250.00", FormatCurrency(250))
	assert.Equal(t, "USD 80.0K", FormatCurrency(80_000))
	assert.Equal(t, "USD 4.8M", FormatCurrency(4_800_000))
	assert.Equal(t, "USD 1.2B", FormatCurrency(1_200_000_000))
}

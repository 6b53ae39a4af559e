package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "short", tp.Truncate("  short  ", 10))
	assert.Equal(t, "unlimited", tp.Truncate("unlimited", 0))
	assert.Equal(t, "abcd…", tp.Truncate("abcdefgh", 5))
	assert.Equal(t, "ab…", tp.Truncate("ab   cdefgh", 5))

	long := strings.Repeat("ü", 50)
	got := tp.Truncate(long, 10)
	assert.Equal(t, 10, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "valid ✓", tp.SanitizeUTF8("valid ✓"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
	assert.Equal(t, "ab…", tp.ProcessText("a\xffbcdef", 3))
}

func TestCompactJSON(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, `{"a":1}`, tp.CompactJSON(map[string]int{"a": 1}, 100))
	assert.Equal(t, `{"a…`, tp.CompactJSON(map[string]string{"a": "long"}, 4))
}

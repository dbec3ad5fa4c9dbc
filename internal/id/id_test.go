package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_PrefixAndLength(t *testing.T) {
	for _, prefix := range []string{PrefixUser, PrefixAuthor, PrefixBook, PrefixLoan} {
		t.Run(prefix, func(t *testing.T) {
			v, err := Generate(prefix)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(v, prefix+"-"))
			assert.Len(t, strings.TrimPrefix(v, prefix+"-"), 21)
		})
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		v := MustGenerate("test")
		assert.False(t, seen[v], "duplicate id %s", v)
		seen[v] = true
	}
}

func TestLabel(t *testing.T) {
	at := time.UnixMilli(1718000000123)

	label, err := Label(at)
	require.NoError(t, err)

	parts := strings.Split(label, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "order", parts[0])
	assert.Equal(t, "1718000000123", parts[1])
	assert.Len(t, parts[2], 6)
	for _, r := range parts[2] {
		assert.Contains(t, labelAlphabet, string(r))
	}
}

func TestLabel_SameInstantDiffers(t *testing.T) {
	at := time.Now()
	a, err := Label(at)
	require.NoError(t, err)
	b, err := Label(at)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreVariant(t *testing.T) {
	require.Zero(t, scoreVariant(""))
	require.Equal(t, 1.0, scoreVariant("short and punchy"))
	require.Equal(t, 1.0, scoreVariant(strings.Repeat("x", 280)))
	require.Equal(t, 0.1, scoreVariant(strings.Repeat("x", 1000)))
	require.Equal(t, 0.1, scoreVariant(strings.Repeat("x", 5000)))

	mid := scoreVariant(strings.Repeat("x", 640))
	require.Greater(t, mid, 0.1)
	require.Less(t, mid, 1.0)

	// Rune count, not byte count. 280 multibyte runes still score full marks.
	require.Equal(t, 1.0, scoreVariant(strings.Repeat("é", 280)))
}

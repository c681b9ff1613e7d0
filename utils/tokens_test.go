package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotepulse/quotepulse/models"
)

func TestTokenRegistryFallsBackToDefaults(t *testing.T) {
	t.Parallel()
	// --- given ---
	defaults := TokenSettings{ListInterval: 5 * time.Second, TrendInterval: time.Minute}
	SUT := NewTokenRegistry(defaults)

	// --- when / then ---
	assert.Equal(t, defaults, SUT.Get("unknown"))
	assert.False(t, SUT.Contains("unknown"))

	custom := TokenSettings{ListInterval: time.Second}
	SUT.Set("tok", custom)
	assert.True(t, SUT.Contains("tok"))
	assert.Equal(t, custom, SUT.Get("tok"))

	SUT.Remove("tok")
	assert.Equal(t, defaults, SUT.Get("tok"))
}

func TestTokenSettingsIsPinned(t *testing.T) {
	t.Parallel()
	// --- given ---
	settings := TokenSettings{Pinned: []models.StockID{models.MustParseStockID("sh.600000")}}

	// --- when / then ---
	assert.True(t, settings.IsPinned(models.MustParseStockID("600000.SH")))
	assert.False(t, settings.IsPinned(models.MustParseStockID("sz.000001")))
}

func TestNewTokenShapeAndUniqueness(t *testing.T) {
	t.Parallel()
	// --- given ---
	SUT := NewTokenRegistry(TokenSettings{})

	// --- when ---
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		token := SUT.NewToken()
		require.Len(t, token, 16)
		assert.False(t, seen[token], "token %q issued twice", token)
		seen[token] = true
		SUT.Set(token, TokenSettings{})
	}

	// --- then ---
	assert.Len(t, seen, 100)
}

package packs

import (
	"testing"

	"github.com/angelmondragon/creditpacks-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditsFor(t *testing.T) {
	catalog := NewCatalog(config.PacksConfig{
		SmallVariantID:  "111",
		MediumVariantID: "222",
		LargeVariantID:  "333",
	})

	tests := []struct {
		name      string
		variantID string
		total     int64
		credits   int
		source    MatchSource
	}{
		{name: "medium by price", total: 2499, credits: 150, source: MatchPrice},
		{name: "small by price", total: 999, credits: 50, source: MatchPrice},
		{name: "large by price", total: 6999, credits: 500, source: MatchPrice},
		{name: "variant wins over price", variantID: "333", total: 999, credits: 500, source: MatchVariant},
		{name: "unknown variant falls back to price", variantID: "999", total: 2499, credits: 150, source: MatchPrice},
		{name: "one cent off is not a match", total: 2500, credits: 0, source: MatchNone},
		{name: "zero total", total: 0, credits: 0, source: MatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credits, source := catalog.CreditsFor(tt.variantID, tt.total)
			assert.Equal(t, tt.credits, credits)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestCreditsForFallback(t *testing.T) {
	catalog := NewCatalog(config.PacksConfig{FallbackCentsPerCredit: 100})

	credits, source := catalog.CreditsFor("", 1234)
	assert.Equal(t, 12, credits)
	assert.Equal(t, MatchFallback, source)

	credits, source = catalog.CreditsFor("", 99)
	assert.Equal(t, 0, credits)
	assert.Equal(t, MatchNone, source)

	credits, source = catalog.CreditsFor("", 2499)
	assert.Equal(t, 150, credits, "pack price still wins over the fallback")
	assert.Equal(t, MatchPrice, source)
}

func TestCatalogLookup(t *testing.T) {
	catalog := NewCatalog(config.PacksConfig{MediumVariantID: "222"})

	pack, ok := catalog.Get(" Medium ")
	require.True(t, ok)
	assert.Equal(t, 150, pack.Credits)
	assert.True(t, pack.Popular)
	assert.Equal(t, "222", pack.VariantID)
	assert.Equal(t, int64(2499), pack.PriceCents())

	_, ok = catalog.Get("huge")
	assert.False(t, ok)

	all := catalog.All()
	require.Len(t, all, 3)
	all[0].Credits = 0
	first, _ := catalog.Get("small")
	assert.Equal(t, 50, first.Credits, "All must return a copy")
}

package packs

import (
	"strings"

	"github.com/angelmondragon/creditpacks-backend/pkg/config"
	"github.com/shopspring/decimal"
)

// Pack is one purchasable bundle of credits.
type Pack struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Credits     int             `json:"credits"`
	Price       decimal.Decimal `json:"price"`
	Popular     bool            `json:"popular"`
	VariantID   string          `json:"-"`
}

// PriceCents returns the pack price in the provider's minor units.
func (p Pack) PriceCents() int64 {
	return p.Price.Shift(2).Round(0).IntPart()
}

// MatchSource names the rule that produced a credit amount.
type MatchSource string

const (
	MatchVariant  MatchSource = "variant"
	MatchPrice    MatchSource = "price"
	MatchFallback MatchSource = "fallback"
	MatchNone     MatchSource = "none"
)

var priceTolerance = decimal.New(1, -2)

// Catalog is built once at startup and shared read-only.
type Catalog struct {
	packs                  []Pack
	fallbackCentsPerCredit int64
}

// NewCatalog returns the standard small/medium/large catalog bound to the
// configured provider variants.
func NewCatalog(cfg config.PacksConfig) *Catalog {
	return NewCatalogFromPacks([]Pack{
		{
			Key:         "small",
			Name:        "Small Pack",
			Description: "Perfect for getting started",
			Credits:     50,
			Price:       decimal.RequireFromString("9.99"),
			VariantID:   strings.TrimSpace(cfg.SmallVariantID),
		},
		{
			Key:         "medium",
			Name:        "Medium Pack",
			Description: "Most popular choice",
			Credits:     150,
			Price:       decimal.RequireFromString("24.99"),
			Popular:     true,
			VariantID:   strings.TrimSpace(cfg.MediumVariantID),
		},
		{
			Key:         "large",
			Name:        "Large Pack",
			Description: "For power users",
			Credits:     500,
			Price:       decimal.RequireFromString("69.99"),
			VariantID:   strings.TrimSpace(cfg.LargeVariantID),
		},
	}, cfg.FallbackCentsPerCredit)
}

func NewCatalogFromPacks(packs []Pack, fallbackCentsPerCredit int64) *Catalog {
	copied := make([]Pack, len(packs))
	copy(copied, packs)
	if fallbackCentsPerCredit < 0 {
		fallbackCentsPerCredit = 0
	}
	return &Catalog{packs: copied, fallbackCentsPerCredit: fallbackCentsPerCredit}
}

// All returns the packs in display order.
func (c *Catalog) All() []Pack {
	out := make([]Pack, len(c.packs))
	copy(out, c.packs)
	return out
}

func (c *Catalog) Get(key string) (Pack, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, pack := range c.packs {
		if pack.Key == key {
			return pack, true
		}
	}
	return Pack{}, false
}

// CreditsFor resolves the credits granted for an order. A known variant wins,
// then a pack priced within one cent of the total, then the configured
// cents-per-credit fallback. MatchNone means the order cannot be priced.
func (c *Catalog) CreditsFor(variantID string, totalCents int64) (int, MatchSource) {
	if variantID = strings.TrimSpace(variantID); variantID != "" {
		for _, pack := range c.packs {
			if pack.VariantID != "" && pack.VariantID == variantID {
				return pack.Credits, MatchVariant
			}
		}
	}

	total := decimal.New(totalCents, -2)
	for _, pack := range c.packs {
		if pack.Price.Sub(total).Abs().LessThan(priceTolerance) {
			return pack.Credits, MatchPrice
		}
	}

	if c.fallbackCentsPerCredit > 0 && totalCents > 0 {
		credits := totalCents / c.fallbackCentsPerCredit
		if credits > 0 {
			return int(credits), MatchFallback
		}
	}
	return 0, MatchNone
}

package payments

import (
	"slices"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
)

// Catalog is an immutable, ordered product list.
type Catalog struct {
	products []domain.Product
	bySKU    map[string]domain.Product
}

func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{
		products: slices.Clone(products),
		bySKU:    make(map[string]domain.Product, len(products)),
	}
	for _, p := range products {
		c.bySKU[p.SKU] = p
	}
	return c
}

// DefaultCatalog is the credit packs plus the ad-free subscription.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		domain.Product{
			SKU: "starter", Name: "Starter Pack", Description: "60 credits (6 posters)",
			Credits: 60, AmountCents: 900, Currency: "usd", Mode: domain.ModePayment,
		},
		domain.Product{
			SKU: "standard", Name: "Standard Pack", Description: "100 credits (10 posters)",
			Credits: 100, AmountCents: 1500, Currency: "usd", Mode: domain.ModePayment,
		},
		domain.Product{
			SKU: "studio", Name: "Studio Pack", Description: "400 credits (40 posters)",
			Credits: 400, AmountCents: 4900, Currency: "usd", Mode: domain.ModePayment,
		},
		domain.Product{
			SKU: "adfree", Name: "Ad-Free", Description: "Remove ads, billed monthly",
			AmountCents: 499, Currency: "usd", Mode: domain.ModeSubscription,
		},
	)
}

func (c *Catalog) Lookup(sku string) (domain.Product, bool) {
	p, ok := c.bySKU[sku]
	return p, ok
}

// All returns a copy in catalog order.
func (c *Catalog) All() []domain.Product {
	return slices.Clone(c.products)
}

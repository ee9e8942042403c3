package http

import (
	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
)

func toProfile(u domain.User) visionsdk.Profile {
	return visionsdk.Profile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Credits:     u.Credits,
		AdFree:      u.AdFree,
		Plan:        u.Plan,
		CreatedAt:   u.CreatedAt,
	}
}

func toPoster(p domain.Poster) visionsdk.Poster {
	return visionsdk.Poster{
		ID:        p.ID,
		Prompt:    p.Prompt,
		Style:     p.Style,
		Size:      p.Size,
		URL:       p.URL,
		Width:     p.Width,
		Height:    p.Height,
		CreatedAt: p.CreatedAt,
	}
}

func toProduct(p domain.Product) visionsdk.Product {
	return visionsdk.Product{
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Credits:     p.Credits,
		Price:       float64(p.AmountCents) / 100,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Mode:        p.Mode,
	}
}

func toReceipt(e domain.CreditEvent) visionsdk.Receipt {
	return visionsdk.Receipt{
		ID:         e.ID,
		SKU:        e.SKU,
		Credits:    e.Amount,
		Amount:     float64(e.AmountCents) / 100,
		Currency:   e.Currency,
		ProviderID: e.ProviderID,
		CreatedAt:  e.CreatedAt,
	}
}

// paymentStatus reports a session the way hosted providers report payment:
// an open session is simply unpaid.
func paymentStatus(s domain.CheckoutSession) string {
	switch s.Status {
	case domain.CheckoutPaid:
		return visionsdk.CheckoutPaid
	case domain.CheckoutOpen:
		return visionsdk.CheckoutUnpaid
	default:
		return s.Status
	}
}

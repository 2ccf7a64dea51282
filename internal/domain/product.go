package domain

import (
	"fmt"
	"strings"
	"time"
)

var (
	ErrProductNotFound = fmt.Errorf("%w: product", ErrNotFound)
	ErrNotProductOwner = fmt.Errorf("%w: not the product seller", ErrForbidden)
	ErrInvalidPrice    = fmt.Errorf("%w: invalid price", ErrInvalidArgument)
	ErrInvalidCurrency = fmt.Errorf("%w: invalid currency", ErrInvalidArgument)
)

//nolint:gochecknoglobals
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// Product is a print listing of an artwork.
type Product struct {
	ID         string    `json:"id"`
	ArtworkID  string    `json:"artworkId"`
	SellerID   string    `json:"sellerId"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"priceCents"`
	Currency   string    `json:"currency"`
	Stock      int64     `json:"stock"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Validate checks price, currency, title and stock.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: product title is empty", ErrInvalidArgument)
	}

	if p.PriceCents <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPrice, p.PriceCents)
	}

	if _, ok := currencySymbols[p.Currency]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, p.Currency)
	}

	if p.Stock < 0 {
		return fmt.Errorf("%w: negative stock", ErrInvalidArgument)
	}

	return nil
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// FormattedPrice renders the price with its currency symbol, e.g. "$12.50".
// JPY has no minor unit.
func (p Product) FormattedPrice() string {
	symbol, ok := currencySymbols[p.Currency]
	if !ok {
		symbol = p.Currency + " "
	}

	if p.Currency == "JPY" {
		return fmt.Sprintf("%s%d", symbol, p.PriceCents)
	}

	return fmt.Sprintf("%s%d.%02d", symbol, p.PriceCents/100, p.PriceCents%100)
}

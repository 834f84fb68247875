// Package market fetches coin prices from the upstream price API and ranks them.
package market

// Coin is one asset as reported by the price API. Prices, market cap and
// volume are in USD; PercentChange24h is a signed percentage.
type Coin struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	PriceUSD         float64 `json:"price_usd"`
	PercentChange24h float64 `json:"percent_change_24h"`
	MarketCapUSD     float64 `json:"market_cap_usd"`
	Volume24hUSD     float64 `json:"volume_24h_usd"`
	IsStablecoin     bool    `json:"is_stablecoin"` // classified upstream
	Type             string  `json:"type"`
}

// ListOptions filters a coin listing.
type ListOptions struct {
	Limit int
	Type  string
}

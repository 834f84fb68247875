package market

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a set of coins.
type Summary struct {
	Count           int     `json:"count"`
	TotalMarketCap  float64 `json:"total_market_cap_usd"`
	TotalVolume     float64 `json:"total_volume_24h_usd"`
	MeanChange24h   float64 `json:"mean_change_24h"`
	MedianChange24h float64 `json:"median_change_24h"`
	StdDevChange24h float64 `json:"stddev_change_24h"`
	StablecoinCount int     `json:"stablecoin_count"`
}

// RankByMarketCap returns a copy of coins sorted by market cap, largest first.
// Ties keep their input order.
func RankByMarketCap(coins []Coin) []Coin {
	ranked := append([]Coin(nil), coins...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MarketCapUSD > ranked[j].MarketCapUSD
	})
	return ranked
}

// TopMovers returns the n largest gainers and the n largest losers by 24h change.
// Coins that did not move are in neither list.
func TopMovers(coins []Coin, n int) (gainers, losers []Coin) {
	if n <= 0 {
		return nil, nil
	}

	for _, c := range coins {
		switch {
		case c.PercentChange24h > 0:
			gainers = append(gainers, c)
		case c.PercentChange24h < 0:
			losers = append(losers, c)
		}
	}

	sort.SliceStable(gainers, func(i, j int) bool {
		return gainers[i].PercentChange24h > gainers[j].PercentChange24h
	})
	sort.SliceStable(losers, func(i, j int) bool {
		return losers[i].PercentChange24h < losers[j].PercentChange24h
	})

	if len(gainers) > n {
		gainers = gainers[:n]
	}
	if len(losers) > n {
		losers = losers[:n]
	}
	return gainers, losers
}

// FilterStablecoins keeps only stablecoins when include is true, and drops
// them otherwise.
func FilterStablecoins(coins []Coin, include bool) []Coin {
	out := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if c.IsStablecoin == include {
			out = append(out, c)
		}
	}
	return out
}

// FilterByType keeps coins whose type matches typ, case-insensitively.
// An empty typ keeps everything.
func FilterByType(coins []Coin, typ string) []Coin {
	if typ == "" {
		return append([]Coin(nil), coins...)
	}
	out := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if strings.EqualFold(c.Type, typ) {
			out = append(out, c)
		}
	}
	return out
}

// Summarize computes totals and 24h change statistics.
func Summarize(coins []Coin) Summary {
	s := Summary{Count: len(coins)}
	if len(coins) == 0 {
		return s
	}

	caps := make([]float64, len(coins))
	volumes := make([]float64, len(coins))
	changes := make([]float64, len(coins))
	for i, c := range coins {
		caps[i] = c.MarketCapUSD
		volumes[i] = c.Volume24hUSD
		changes[i] = c.PercentChange24h
		if c.IsStablecoin {
			s.StablecoinCount++
		}
	}

	s.TotalMarketCap = floats.Sum(caps)
	s.TotalVolume = floats.Sum(volumes)
	s.MeanChange24h = stat.Mean(changes, nil)
	if len(changes) > 1 {
		s.StdDevChange24h = stat.StdDev(changes, nil)
	}

	sort.Float64s(changes)
	s.MedianChange24h = median(changes)
	return s
}

// median of sorted values; the mean of the middle pair for even lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}

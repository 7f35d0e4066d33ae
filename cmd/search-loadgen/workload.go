package main

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/postal"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/shops"
)

// Montréal forward sortation areas used when no CSV is given
var montrealFSAs = []string{
	"H2J", "H2T", "H2W", "H2X", "H2L", "H2H", "H2G", "H2S",
	"H3A", "H3B", "H3H", "H3J", "H3K", "H4C", "H1V", "H1W",
}

// postalPool returns distinct normalized codes. Codes taken from the shop
// CSV come first so the hot end of the Zipf draw lands near real shops.
func postalPool(log *slog.Logger, csvPath string, count int, r *rand.Rand) ([]string, error) {
	seen := make(map[string]struct{}, count)
	out := make([]string, 0, count)
	add := func(code string) {
		code = postal.Normalize(code)
		if !postal.IsValid(code) {
			return
		}
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}

	if csvPath != "" {
		list, err := shops.LoadCSVFile(log, csvPath)
		if err != nil {
			return nil, fmt.Errorf("load shops csv: %w", err)
		}
		for _, s := range list {
			if len(out) >= count {
				break
			}
			add(s.PostalCode)
		}
	}

	for attempts := 0; len(out) < count && attempts < count*20; attempts++ {
		add(syntheticCode(montrealFSAs[r.Intn(len(montrealFSAs))], r))
	}
	return out, nil
}

func syntheticCode(fsa string, r *rand.Rand) string {
	const letters = "ABCEGHJKLMNPRSTVWXYZ"
	return fmt.Sprintf("%s%d%c%d", fsa, r.Intn(10), letters[r.Intn(len(letters))], r.Intn(10))
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}

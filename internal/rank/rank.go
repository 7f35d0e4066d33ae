// Package rank computes great-circle distances and orders shops around an origin.
package rank

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
)

const (
	EarthRadiusKm        = 6371.0
	DefaultMaxDistanceKm = 15.0
)

// HaversineKm takes degrees and returns kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	a := sLat*sLat + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*sLon*sLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// FilterAndRank drops shops without usable coordinates or farther than
// maxKm, rounds kept distances to one decimal and sorts them ascending.
// Equal distances keep their input order.
func FilterAndRank(shops []model.Shop, originLat, originLon, maxKm float64) []model.RankedShop {
	if maxKm <= 0 {
		maxKm = DefaultMaxDistanceKm
	}

	out := make([]model.RankedShop, 0, len(shops))
	for _, s := range shops {
		lat, ok := parseCoord(s.Lat)
		if !ok {
			continue
		}
		lon, ok := parseCoord(s.Lon)
		if !ok {
			continue
		}

		d := HaversineKm(originLat, originLon, lat, lon)
		if d > maxKm {
			continue
		}
		rounded := Round1(d)
		out = append(out, model.RankedShop{Shop: s, Distance: &rounded})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Distance < *out[j].Distance
	})
	return out
}

// Round1 rounds half-up to one decimal place.
func Round1(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

func parseCoord(p *string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strings"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// String representation used in logs
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

type ServiceFilter string

const (
	ServiceAll     ServiceFilter = ""
	ServiceRepair  ServiceFilter = "repair"
	ServiceRental  ServiceFilter = "rental"
	ServiceSale    ServiceFilter = "sale"
	ServiceStorage ServiceFilter = "storage"
)

// ParseServiceFilter accepts an empty value or "all" as no filter.
func ParseServiceFilter(s string) (ServiceFilter, error) {
	switch v := ServiceFilter(strings.ToLower(strings.TrimSpace(s))); v {
	case ServiceAll, "all":
		return ServiceAll, nil
	case ServiceRepair, ServiceRental, ServiceSale, ServiceStorage:
		return v, nil
	default:
		return ServiceAll, fmt.Errorf("unknown service %q (want repair, rental, sale or storage)", s)
	}
}

const StatusApproved = "approved"

type Shop struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	PostalCode string  `json:"postalCode"`
	City       string  `json:"city"`
	Phone      *string `json:"phone"`
	Website    *string `json:"website"`
	Notes      *string `json:"notes"`
	Lat        *string `json:"lat"`
	Lon        *string `json:"lon"`
	Repair     bool    `json:"repair"`
	Rental     bool    `json:"rental"`
	Sale       bool    `json:"sale"`
	Storage    bool    `json:"storage"`
	Status     string  `json:"status"`
}

// Offers reports whether the shop provides the filtered service.
func (s Shop) Offers(f ServiceFilter) bool {
	switch f {
	case ServiceRepair:
		return s.Repair
	case ServiceRental:
		return s.Rental
	case ServiceSale:
		return s.Sale
	case ServiceStorage:
		return s.Storage
	default:
		return true
	}
}

// RankedShop is a shop annotated with its distance from the search origin.
// A nil Distance means the distance is unknown.
type RankedShop struct {
	Shop
	Distance *float64 `json:"distance"`
}

type SearchQuery struct {
	Service       ServiceFilter
	PostalCode    string
	MaxDistanceKm float64
}

// SearchResult is Ranked when every shop carries a distance, ordered
// ascending. Unranked results keep the store order with nil distances.
type SearchResult struct {
	Ranked bool
	Shops  []RankedShop
}

func Unranked(shops []Shop) SearchResult {
	out := make([]RankedShop, len(shops))
	for i, s := range shops {
		out[i] = RankedShop{Shop: s}
	}
	return SearchResult{Ranked: false, Shops: out}
}

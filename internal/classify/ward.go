package classify

import (
	"math/rand"
	"strings"
)

// Location is the minimal location shape the ward resolver needs.
type Location struct {
	Lat     *float64
	Lng     *float64
	Address string
}

// wardArea is one entry in the known-area table: a coordinate box plus the
// address substrings that name it.
type wardArea struct {
	ward           int
	minLat, maxLat float64
	minLng, maxLng float64
	substrings     []string
}

// knownAreas is the coarse boundary table for the pilot wards. The boxes are
// approximate; address substrings catch locations the boxes miss.
var knownAreas = []wardArea{
	{ward: 15, minLat: 22.29, maxLat: 22.31, minLng: 70.77, maxLng: 70.79, substrings: []string{"bhaktinagar", "ભક્તિનગર", "भक्तिनगर"}},
	{ward: 12, minLat: 22.27, maxLat: 22.29, minLng: 70.78, maxLng: 70.80, substrings: []string{"kuvadva", "કુવાડવા"}},
	{ward: 18, minLat: 22.29, maxLat: 22.31, minLng: 70.76, maxLng: 70.78, substrings: []string{"race course", "રેસકોર્સ"}},
}

// FallbackPolicy picks a ward when neither coordinates nor address match a
// known area. The legacy behavior is a uniform-random pick, which mis-files
// complaints; deployments can swap in FixedFallback to route unknowns to a
// triage ward instead.
type FallbackPolicy func() int

// RandomFallback returns the legacy uniform-random policy over 1..wardCount.
func RandomFallback(wardCount int) FallbackPolicy {
	return func() int {
		return rand.Intn(wardCount) + 1
	}
}

// FixedFallback always returns the given ward.
func FixedFallback(ward int) FallbackPolicy {
	return func() int {
		return ward
	}
}

// WardResolver maps locations to ward numbers.
type WardResolver struct {
	areas    []wardArea
	fallback FallbackPolicy
}

// NewWardResolver creates a resolver with the built-in area table and the
// given fallback policy.
func NewWardResolver(fallback FallbackPolicy) *WardResolver {
	return &WardResolver{areas: knownAreas, fallback: fallback}
}

// Resolve picks a ward for the location: coordinate-box lookup first, then
// address-substring match, then the fallback policy.
func (r *WardResolver) Resolve(loc Location) int {
	if loc.Lat != nil && loc.Lng != nil {
		lat, lng := *loc.Lat, *loc.Lng
		for _, a := range r.areas {
			if lat >= a.minLat && lat <= a.maxLat && lng >= a.minLng && lng <= a.maxLng {
				return a.ward
			}
		}
	}

	if loc.Address != "" {
		addr := strings.ToLower(loc.Address)
		for _, a := range r.areas {
			for _, sub := range a.substrings {
				if strings.Contains(addr, sub) {
					return a.ward
				}
			}
		}
	}

	return r.fallback()
}

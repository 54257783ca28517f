package models

import "math"

// LatLng represents a geographical point defined by its latitude and longitude.
type LatLng struct {
	Lat float64 `json:"lat"` // Latitude of the geographical point.
	Lng float64 `json:"lng"` // Longitude of the geographical point.
}

// Bounds is a rectangular region in lat/lng space.
// A well-formed Bounds always has SouthWest <= NorthEast on both axes.
type Bounds struct {
	SouthWest LatLng `json:"southWest"`
	NorthEast LatLng `json:"northEast"`
}

// NewBounds builds a region from two opposite corners given in any order.
func NewBounds(a, b LatLng) Bounds {
	return Bounds{
		SouthWest: LatLng{Lat: math.Min(a.Lat, b.Lat), Lng: math.Min(a.Lng, b.Lng)},
		NorthEast: LatLng{Lat: math.Max(a.Lat, b.Lat), Lng: math.Max(a.Lng, b.Lng)},
	}
}

// PointBounds returns the degenerate, zero-area region collapsed onto p.
func PointBounds(p LatLng) Bounds {
	return Bounds{SouthWest: p, NorthEast: p}
}

// Contains reports whether p lies inside the region, edges included.
func (b Bounds) Contains(p LatLng) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng
}

// Center returns the midpoint of the region.
func (b Bounds) Center() LatLng {
	return LatLng{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
}

// Extend returns the smallest region covering both b and p.
func (b Bounds) Extend(p LatLng) Bounds {
	return NewBounds(
		LatLng{Lat: math.Min(b.SouthWest.Lat, p.Lat), Lng: math.Min(b.SouthWest.Lng, p.Lng)},
		LatLng{Lat: math.Max(b.NorthEast.Lat, p.Lat), Lng: math.Max(b.NorthEast.Lng, p.Lng)},
	)
}

// IsDegenerate reports whether the region has zero area on both axes.
func (b Bounds) IsDegenerate() bool {
	return b.SouthWest == b.NorthEast
}

// Package geo answers whether a caller's coordinates fall inside an event's
// fence.
package geo

import (
	"math"

	"musicroom-core/internal/model"
)

const earthRadiusM = 6371000.0

// Haversine checks fence membership by great-circle distance.
type Haversine struct{}

// Inside is false when either the fence or the point is missing.
func (Haversine) Inside(fence *model.Fence, at *model.Point) bool {
	if fence == nil || at == nil {
		return false
	}
	return DistanceM(fence.Lat, fence.Lng, at.Lat, at.Lng) <= float64(fence.RadiusM)
}

func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// ValidFence reports whether the coordinates and radius are usable.
func ValidFence(f model.Fence) bool {
	return f.Lat >= -90 && f.Lat <= 90 &&
		f.Lng >= -180 && f.Lng <= 180 &&
		f.RadiusM > 0
}

// Static always returns the same verdict.
type Static bool

func (s Static) Inside(*model.Fence, *model.Point) bool { return bool(s) }

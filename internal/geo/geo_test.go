package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"musicroom-core/internal/model"
)

func TestHaversineInside(t *testing.T) {
	paris := &model.Fence{Lat: 48.8566, Lng: 2.3522, RadiusM: 1000}

	tests := []struct {
		name string
		at   *model.Point
		want bool
	}{
		{"center", &model.Point{Lat: 48.8566, Lng: 2.3522}, true},
		{"about 500m away", &model.Point{Lat: 48.8611, Lng: 2.3522}, true},
		{"about 2km away", &model.Point{Lat: 48.8746, Lng: 2.3522}, false},
		{"other city", &model.Point{Lat: 51.5074, Lng: -0.1278}, false},
		{"no coordinates", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Haversine{}.Inside(paris, tt.at))
		})
	}

	assert.False(t, Haversine{}.Inside(nil, &model.Point{}))
}

func TestDistanceM(t *testing.T) {
	// Paris to London is roughly 344 km.
	d := DistanceM(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 344000, d, 2000)
}

func TestValidFence(t *testing.T) {
	assert.True(t, ValidFence(model.Fence{Lat: 10, Lng: 20, RadiusM: 50}))
	assert.False(t, ValidFence(model.Fence{Lat: 91, Lng: 20, RadiusM: 50}))
	assert.False(t, ValidFence(model.Fence{Lat: 10, Lng: -181, RadiusM: 50}))
	assert.False(t, ValidFence(model.Fence{Lat: 10, Lng: 20, RadiusM: 0}))
}

package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		coord   Coordinate
		wantErr bool
	}{
		{name: "Miami", coord: Coordinate{Lat: 25.7602, Lon: -80.1959}},
		{name: "origin", coord: Coordinate{}},
		{name: "north pole", coord: Coordinate{Lat: 90, Lon: 0}},
		{name: "antimeridian", coord: Coordinate{Lat: 0, Lon: 180}},
		{name: "lat too high", coord: Coordinate{Lat: 90.1}, wantErr: true},
		{name: "lat too low", coord: Coordinate{Lat: -90.1}, wantErr: true},
		{name: "lon too high", coord: Coordinate{Lon: 180.1}, wantErr: true},
		{name: "lon too low", coord: Coordinate{Lon: -180.1}, wantErr: true},
		{name: "NaN", coord: Coordinate{Lat: math.NaN()}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coord.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidCoordinate), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCoordinate_Usable(t *testing.T) {
	assert.True(t, Coordinate{Lat: 25.7602, Lon: -80.1959}.Usable())
	assert.False(t, Coordinate{}.Usable())
	assert.False(t, Coordinate{Lat: 100, Lon: 1}.Usable())
}

func TestCoordinate_PointRoundTrip(t *testing.T) {
	c := Coordinate{Lat: 25.7602, Lon: -80.1959}
	p := c.Point()

	assert.Equal(t, -80.1959, p.Lon())
	assert.Equal(t, 25.7602, p.Lat())
	assert.Equal(t, c, FromPoint(p))
}

func TestRegion_Bound(t *testing.T) {
	center := Coordinate{Lat: 25.7602, Lon: -80.1959}
	b := NewRegion(center, 10000, 10000).Bound()

	// 10 km north-south is ~0.0898 degrees
	assert.InDelta(t, 0.0898, b.Max.Lat()-b.Min.Lat(), 0.001)
	// east-west widens with latitude: 10 km / (111.32 km * cos(25.76°)) ~ 0.0999
	assert.InDelta(t, 0.0999, b.Max.Lon()-b.Min.Lon(), 0.001)
	assert.True(t, b.Contains(center.Point()))
}

func TestRegion_BoundClampsAtPole(t *testing.T) {
	b := NewRegion(Coordinate{Lat: 89.99, Lon: 0}, 100000, 100000).Bound()

	assert.LessOrEqual(t, b.Max.Lat(), 90.0)
	assert.GreaterOrEqual(t, b.Min.Lon(), -180.0)
	assert.LessOrEqual(t, b.Max.Lon(), 180.0)
}

package plan

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tol                    float64
	}{
		{"zero distance", 18.0, -76.8, 18.0, -76.8, 0, 1e-9},
		{"kingston to montego bay", 17.9714, -76.7931, 18.4762, -77.8939, 129, 3},
		{"one degree of latitude", 0, 0, 1, 0, 111.19, 0.1},
		{"antipodal-ish", 0, 0, 0, 180, math.Pi * 6371, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.want) > tt.tol {
				t.Fatalf("got %v km, want %v±%v", got, tt.want, tt.tol)
			}
		})
	}
}

func TestHaversineKmSymmetric(t *testing.T) {
	a := HaversineKm(18.0, -76.8, 18.5, -77.9)
	b := HaversineKm(18.5, -77.9, 18.0, -76.8)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("not symmetric: %v vs %v", a, b)
	}
}

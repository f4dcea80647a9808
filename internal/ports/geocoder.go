package ports

import "context"

// ReverseGeocoder turns coordinates into a display address with one network round-trip.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, latitude float64, longitude float64) (string, error)
}

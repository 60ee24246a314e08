// README: Address geocoding for availability search (Google Geocoding API).
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"rental/internal/types"
)

var ErrNoResult = errors.New("address not found")

// Geocoder resolves free-text pickup addresses to coordinates.
type Geocoder struct {
	client *maps.Client
	region string
}

// NewGeocoder creates a Geocoder with the given API key. region biases
// results toward a ccTLD such as "us"; empty means no bias.
func NewGeocoder(apiKey, region string, opts ...maps.ClientOption) (*Geocoder, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client, region: region}, nil
}

// Geocode returns the location of the best match for address.
func (g *Geocoder) Geocode(ctx context.Context, address string) (types.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return types.Point{}, ErrNoResult
	}
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address, Region: g.region})
	if err != nil && strings.Contains(err.Error(), "ZERO_RESULTS") {
		return types.Point{}, ErrNoResult
	}
	if err != nil {
		return types.Point{}, fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, ErrNoResult
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

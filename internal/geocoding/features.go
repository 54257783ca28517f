package geocoding

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// decodeFeatures unmarshals each raw GeoJSON feature on its own so a single malformed
// feature is skipped instead of failing the whole response.
func decodeFeatures(ctx context.Context, log *slog.Logger, raws []json.RawMessage) []*geojson.Feature {
	features := make([]*geojson.Feature, 0, len(raws))
	for idx, raw := range raws {
		feature, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			log.DebugContext(ctx, "Skipping malformed feature", "index", idx, "error", err)
			continue
		}
		if feature.Geometry == nil {
			log.DebugContext(ctx, "Skipping feature without geometry", "index", idx)
			continue
		}
		features = append(features, feature)
	}

	return features
}

// pointLatLng converts a GeoJSON [lon, lat] position to a LatLng.
func pointLatLng(p orb.Point) models.LatLng {
	return models.LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// boundToBounds converts an orb bound into a region.
func boundToBounds(b orb.Bound) models.Bounds {
	return models.NewBounds(pointLatLng(b.Min), pointLatLng(b.Max))
}

// stringProperty returns a string property or "" when it is absent or not a string.
func stringProperty(props geojson.Properties, key string) string {
	v, _ := props[key].(string)
	return v
}

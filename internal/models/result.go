package models

// Result is a normalized candidate place returned by a geocoding provider.
// Results are created by provider parsers and owned by the caller afterwards.
type Result struct {
	Name       string         `json:"name"`             // Human-readable label, may be empty.
	Center     LatLng         `json:"center"`           // Representative coordinate.
	BBox       Bounds         `json:"bbox"`             // Extent of the candidate, always contains Center.
	Bounds     *Bounds        `json:"bounds,omitempty"` // Extent stored under "bounds" (Pelias reverse only).
	Properties map[string]any `json:"properties"`       // Raw provider attributes.
	HTML       string         `json:"html,omitempty"`   // Optional pre-formatted label.
}

// NewResult builds a Result and widens bbox to cover center when a vendor extent misses it.
func NewResult(name string, center LatLng, bbox Bounds, properties map[string]any) Result {
	if !bbox.Contains(center) {
		bbox = bbox.Extend(center)
	}

	return Result{
		Name:       name,
		Center:     center,
		BBox:       bbox,
		Properties: properties,
	}
}

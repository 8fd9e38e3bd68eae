package domain

// IconSize is the marker icon bucket chosen from the zoom level.
type IconSize string

const (
	IconSmall IconSize = "small"
	IconLarge IconSize = "large"
)

// Layer names the marker collection a reconciler owns.
type Layer string

const (
	LayerStops   Layer = "stops"
	LayerWeather Layer = "weather"
)

// Fingerprint captures every attribute that affects how a marker looks.
// Equal fingerprints mean no visual update is needed.
type Fingerprint struct {
	Size   IconSize `json:"size"`
	Active bool     `json:"active"`
	Label  string   `json:"label,omitempty"`
}

// Marker is a desired map marker.
type Marker struct {
	ID          string            `json:"id"`
	Position    GeoPoint          `json:"position"`
	Fingerprint Fingerprint       `json:"fingerprint"`
	Attrs       map[string]string `json:"attrs,omitempty"`
}

// MarkerHandle is the opaque reference a map surface returns for a rendered marker.
type MarkerHandle any

// MarkerDiff lists the mutations needed to move the map to a desired set.
type MarkerDiff struct {
	Add    []Marker `json:"add"`
	Update []Marker `json:"update"`
	Remove []string `json:"remove"`
}

// Empty reports whether the diff carries no mutations.
func (d MarkerDiff) Empty() bool {
	return len(d.Add) == 0 && len(d.Update) == 0 && len(d.Remove) == 0
}

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Tile is one immutable tile source loaded from the registry.
type Tile struct {
	// Key identifies the tile's destination namespace. Derived from the
	// source URL's parent path segment.
	Key string
	// URL is the engine-readable source location.
	URL string
	// EPSG is the tile's local coordinate system code.
	EPSG int
	// Subregions holds the ordered sub-region geometries as WKT polygons.
	Subregions []string
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties      `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type properties struct {
	URL  string          `json:"url"`
	EPSG json.RawMessage `json:"local_epsg_code"`
}

// Load parses the registry file. Any parse failure is fatal to the whole run;
// per-tile problems surface as errors naming the offending feature.
func Load(path string) ([]Tile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, fmt.Errorf("registry: %s: expected FeatureCollection, got %q", path, fc.Type)
	}

	tiles := make([]Tile, 0, len(fc.Features))
	for i, feat := range fc.Features {
		tile, err := parseFeature(feat)
		if err != nil {
			return nil, fmt.Errorf("registry: feature %d: %w", i, err)
		}
		tiles = append(tiles, tile)
	}
	return tiles, nil
}

func parseFeature(feat feature) (Tile, error) {
	url := strings.TrimSpace(feat.Properties.URL)
	if url == "" {
		return Tile{}, fmt.Errorf("missing url property")
	}
	key, err := KeyFromURL(url)
	if err != nil {
		return Tile{}, err
	}

	epsg, err := parseEPSG(feat.Properties.EPSG)
	if err != nil {
		return Tile{}, err
	}

	polygons, err := polygonsToWKT(feat.Geometry)
	if err != nil {
		return Tile{}, err
	}

	return Tile{Key: key, URL: url, EPSG: epsg, Subregions: polygons}, nil
}

// KeyFromURL derives the destination key from the source URL's parent path
// segment (the segment before the final one).
func KeyFromURL(url string) (string, error) {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("url %q has no parent path segment", url)
	}
	key := strings.TrimSpace(parts[len(parts)-2])
	if key == "" {
		return "", fmt.Errorf("url %q has an empty parent path segment", url)
	}
	return key, nil
}

// parseEPSG tolerates both numeric and string-encoded codes; registries in
// the wild carry either.
func parseEPSG(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing local_epsg_code property")
	}
	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		return code, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(text), "EPSG:"))
		if _, err := fmt.Sscanf(text, "%d", &code); err == nil {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unparseable local_epsg_code %s", string(raw))
}

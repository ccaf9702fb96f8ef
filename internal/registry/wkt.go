package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// polygonsToWKT expands a Polygon or MultiPolygon geometry into one WKT
// string per member polygon, preserving order. An empty geometry yields an
// empty list, matching a tile with no obtainable sub-regions.
func polygonsToWKT(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var geom geometry
	if err := json.Unmarshal(raw, &geom); err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}

	switch strings.ToLower(geom.Type) {
	case "polygon":
		var rings [][][]float64
		if err := json.Unmarshal(geom.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("parse polygon coordinates: %w", err)
		}
		wkt, err := polygonWKT(rings)
		if err != nil {
			return nil, err
		}
		return []string{wkt}, nil
	case "multipolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(geom.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("parse multipolygon coordinates: %w", err)
		}
		out := make([]string, 0, len(polys))
		for _, rings := range polys {
			wkt, err := polygonWKT(rings)
			if err != nil {
				return nil, err
			}
			out = append(out, wkt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", geom.Type)
	}
}

func polygonWKT(rings [][][]float64) (string, error) {
	if len(rings) == 0 {
		return "", fmt.Errorf("polygon has no rings")
	}
	var b strings.Builder
	b.WriteString("POLYGON (")
	for i, ring := range rings {
		if len(ring) < 4 {
			return "", fmt.Errorf("polygon ring %d has %d points, need at least 4", i, len(ring))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, pt := range ring {
			if len(pt) < 2 {
				return "", fmt.Errorf("polygon ring %d point %d is not a coordinate pair", i, j)
			}
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatCoord(pt[0]))
			b.WriteByte(' ')
			b.WriteString(formatCoord(pt[1]))
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String(), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Package registry loads the tile registry consumed by the download mode.
//
// The registry is a GeoJSON FeatureCollection: one feature per tile source,
// carrying the source URL, the local EPSG code, and a Polygon or MultiPolygon
// whose member polygons form the ordered sub-region list. Geometries are
// converted to WKT strings for the engine; no geometry math happens here.
package registry

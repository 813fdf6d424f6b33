package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	h3 "github.com/uber/h3-go/v4"
	"github.com/spf13/cobra"
)

func newMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "read lat\\tlon pairs from stdin and emit a GeoJSON feature collection of covered H3 cells",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap()
		},
	}
}

type geoJSONFeature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   geoJSONPolygon `json:"geometry"`
}

type geoJSONPolygon struct {
	Type        string          `json:"type"`
	Coordinates [][][2]float64  `json:"coordinates"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

func runMap() error {
	cfg, err := loadConfigOnly()
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	cells := make(map[h3.Cell]struct{})
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lat, lon, err := parseLatLon(line)
		if err != nil {
			return fmt.Errorf("map: %w", err)
		}
		cell := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, cfg.Geo.H3Resolution)
		cells[cell] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("map: read stdin: %w", err)
	}

	collection := geoJSONCollection{Type: "FeatureCollection"}
	for cell := range cells {
		boundary := cell.Boundary()
		ring := make([][2]float64, 0, len(boundary)+1)
		for _, v := range boundary {
			ring = append(ring, [2]float64{v.Lng, v.Lat})
		}
		if len(ring) > 0 {
			ring = append(ring, ring[0])
		}
		collection.Features = append(collection.Features, geoJSONFeature{
			Type:       "Feature",
			Properties: map[string]any{"h3": cell.String()},
			Geometry:   geoJSONPolygon{Type: "Polygon", Coordinates: [][][2]float64{ring}},
		})
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(collection)
}

func parseLatLon(line string) (float64, float64, error) {
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"lat\\tlon\", got %q", line)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse lon: %w", err)
	}
	return lat, lon, nil
}

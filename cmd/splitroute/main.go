package main

import (
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/segmentation"
	"github.com/samirrijal/multiride/internal/pkg/geospatial"
	"github.com/samirrijal/multiride/internal/pkg/logging"
	"github.com/samirrijal/multiride/internal/pkg/polyline"
)

// Manifest lists the routes to split.
type Manifest struct {
	Source string       `json:"source"`
	Routes []RouteEntry `json:"routes"`
}

// RouteEntry is one encoded route and its segment count.
type RouteEntry struct {
	Name     string   `json:"name"`
	Polyline string   `json:"polyline"`
	Segments int      `json:"segments"`
	Modes    []string `json:"modes,omitempty"`
}

// Result is the outcome for one entry; Error is set instead of Boundaries
// when the route could not be split.
type Result struct {
	Name           string           `json:"name"`
	DistanceMeters float64          `json:"distance_meters,omitempty"`
	Boundaries     []domain.LatLng  `json:"boundaries,omitempty"`
	Segments       []domain.Segment `json:"segments,omitempty"`
	Error          string           `json:"error,omitempty"`
}

func main() {
	workers := flag.Int("workers", 4, "concurrent splits")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	// stdout carries the results.
	logging.SetupWriter(os.Stderr, *logLevel, "text")

	manifestPath := "routes.json"
	if flag.NArg() > 0 {
		manifestPath = flag.Arg(0)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	slog.Info("splitting routes", "count", len(manifest.Routes), "source", manifest.Source)

	results := splitAll(manifest.Routes, *workers)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		log.Fatalf("write results: %v", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	slog.Info("split complete", "ok", len(results)-failed, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// splitAll splits every entry with up to workers goroutines. Results keep
// manifest order.
func splitAll(entries []RouteEntry, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(entries))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e RouteEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = splitOne(e)
		}(i, e)
	}
	wg.Wait()
	return results
}

func splitOne(e RouteEntry) Result {
	res := Result{Name: e.Name}
	bounds, err := segmentation.Split(e.Polyline, e.Segments)
	if err != nil {
		slog.Warn("route not split", "name", e.Name, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Boundaries = bounds
	// Split already rejected anything that does not decode.
	if line, err := polyline.Decode(e.Polyline); err == nil {
		res.DistanceMeters = math.Round(geospatial.PathLength(line))
	}
	if len(e.Modes) > 0 {
		res.Segments = segmentation.Pair(bounds, e.Modes)
	}
	return res
}

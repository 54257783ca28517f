package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/UnknownOlympus/meridian/internal/service"
	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <query>...",
	Short: "Look up places matching a free-text query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(cmd.OutOrStdout(), func(geo *service.GeocodingService, out *printer) {
			query := strings.Join(args, " ")
			geo.Geocode(query, out.handler(query))
		})
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <prefix>...",
	Short: "Run typeahead lookups, one per argument, concurrently",
	Long: `
Each argument is sent as its own suggestion request, the way a search box sends
one request per keystroke. Requests run concurrently; a Pelias response that
arrives after a newer one was printed is dropped.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(cmd.OutOrStdout(), func(geo *service.GeocodingService, out *printer) {
			for _, prefix := range args {
				geo.Suggest(prefix, out.handler(prefix))
			}
		})
	},
}

var reverseCmd = &cobra.Command{
	Use:   "reverse <lat> <lng>",
	Short: "Look up places at a coordinate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		point, err := parseLatLng(args[0], args[1])
		if err != nil {
			return err
		}

		return runLookup(cmd.OutOrStdout(), func(geo *service.GeocodingService, out *printer) {
			geo.Reverse(point, out.handler(args[0]+","+args[1]))
		})
	},
}

// runLookup wires the async service, lets dispatch issue calls and waits for them to settle.
func runLookup(w io.Writer, dispatch func(geo *service.GeocodingService, out *printer)) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	out := &printer{w: w}
	var failed bool
	geo := service.NewGeocodingService(a.log, a.provider,
		service.WithQueryPrefix(a.cfg.QueryPrefix),
		service.WithErrorHandler(func(method string, err error) {
			out.mu.Lock()
			defer out.mu.Unlock()
			failed = true
			a.log.Error("Lookup failed", "method", method, "error", err)
		}),
	)

	dispatch(geo, out)
	geo.Wait()

	if failed {
		return errors.New("geocoding provider failed")
	}

	return nil
}

// printer serializes result output from concurrent callbacks.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

type lookupOutput struct {
	Query   string          `json:"query"`
	Results []models.Result `json:"results"`
}

func (p *printer) handler(query string) service.ResultHandler {
	return func(results []models.Result) {
		p.mu.Lock()
		defer p.mu.Unlock()

		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(lookupOutput{Query: query, Results: results})
	}
}

func parseLatLng(rawLat, rawLng string) (models.LatLng, error) {
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || lat < -90 || lat > 90 {
		return models.LatLng{}, fmt.Errorf("invalid latitude %q", rawLat)
	}

	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil || lng < -180 || lng > 180 {
		return models.LatLng{}, fmt.Errorf("invalid longitude %q", rawLng)
	}

	return models.LatLng{Lat: lat, Lng: lng}, nil
}

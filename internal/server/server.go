package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the geocoding provider over HTTP together with health and metrics endpoints.
type Server struct {
	httpServer *http.Server
	provider   geocoding.Provider
	log        *slog.Logger
}

// NewServer creates an HTTP server with /v1/geocode, /v1/suggest, /v1/reverse, /healthz and /metrics routes.
func NewServer(addr string, provider geocoding.Provider, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		provider: provider,
		log:      log,
	}

	v1 := router.Group("/v1")
	v1.GET("/geocode", s.geocode)
	v1.GET("/suggest", s.suggest)
	v1.GET("/reverse", s.reverse)

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "OK")
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) geocode(ctx *gin.Context) {
	query, ok := queryText(ctx)
	if !ok {
		return
	}

	results, err := s.provider.Geocode(ctx.Request.Context(), query)
	s.respond(ctx, "geocode", results, err)
}

func (s *Server) suggest(ctx *gin.Context) {
	query, ok := queryText(ctx)
	if !ok {
		return
	}

	results, err := geocoding.Suggest(ctx.Request.Context(), s.provider, query)
	s.respond(ctx, "suggest", results, err)
}

func (s *Server) reverse(ctx *gin.Context) {
	lat, errLat := strconv.ParseFloat(ctx.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(ctx.Query("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters must be valid coordinates"})
		return
	}

	results, err := s.provider.Reverse(ctx.Request.Context(), models.LatLng{Lat: lat, Lng: lng})
	s.respond(ctx, "reverse", results, err)
}

func (s *Server) respond(ctx *gin.Context, method string, results []models.Result, err error) {
	switch {
	case errors.Is(err, geocoding.ErrStaleResponse):
		ctx.Status(http.StatusNoContent)
	case err != nil:
		s.log.ErrorContext(ctx.Request.Context(), "Provider call failed", "method", method, "error", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "geocoding provider failed"})
	default:
		if results == nil {
			results = []models.Result{}
		}
		ctx.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func queryText(ctx *gin.Context) (string, bool) {
	query := strings.TrimSpace(ctx.Query("q"))
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "q query parameter is required"})
		return "", false
	}

	return query, true
}

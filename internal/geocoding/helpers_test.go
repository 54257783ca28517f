package geocoding_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/UnknownOlympus/meridian/internal/transport"
	"github.com/stretchr/testify/assert"
)

// discardLogger keeps provider debug output out of test logs.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newVendor starts a fake vendor API along with a client to call it.
// Providers receive the server URL through their options.
func newVendor(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *transport.Client) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv, transport.NewClient(time.Second, "meridian-test", discardLogger())
}

// writeJSON answers with a raw JSON body.
func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

// assertContainsCenter checks the invariant shared by every provider.
func assertContainsCenter(t *testing.T, results []models.Result) {
	t.Helper()

	for i, res := range results {
		assert.True(t, res.BBox.Contains(res.Center), "result %d: bbox %+v misses centre %+v", i, res.BBox, res.Center)
	}
}

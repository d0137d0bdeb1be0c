package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/framescale/internal/metrics"
)

func TestHTTPHandler(t *testing.T) {
	handler := HTTPHandler()
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}

	// Set a metric so there's something to export
	metrics.SetFFmpegFPS("http-test-encoder", 25.0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, name := range []string{"framescale_ffmpeg_fps", "framescale_pipeline_frames_encoded_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in response", name)
		}
	}

	metrics.DeleteFFmpegMetrics("http-test-encoder")
}

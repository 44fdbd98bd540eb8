package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMetricsConcurrency verifies that independent registries can be built concurrently.
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if err != nil {
				errs <- err
				return
			}
			if m.MediaDevices == nil || m.MQTT == nil || m.registry == nil {
				t.Error("NewMetrics returned incomplete metrics")
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("NewMetrics failed: %v", err)
	}
}

func TestHandlerExposesEngineMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.MediaDevices.SetDeviceCounts("audioinput", 3, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `mediadevices_connected_devices{class="audioinput"} 3`))
	assert.Contains(t, body, "go_goroutines")
}

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpdate("callback")
	c.RecordUpdate("callback")
	c.RecordUpdate("text")
	c.RecordRateLimited()
	c.RecordPrediction("not_found")
	c.RecordCheckin("duplicate")
	c.RecordDailyReset("ok")
	c.RecordAlertFired()
	c.RecordSend("send.push", "retry")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.updates.WithLabelValues("callback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.updates.WithLabelValues("text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.predictions.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.checkins.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resets.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.alertsFired))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sends.WithLabelValues("send.push", "retry")))
}

func TestHandlerExposesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.TrackGauge("cryptobot_open_slots", "Open prompts.", func() int { return 3 })

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "cryptobot_open_slots 3"), string(body))
}

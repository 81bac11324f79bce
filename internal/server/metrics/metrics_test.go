package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.NotNil(t, r.PeersConnected)
	assert.NotNil(t, r.EnvelopesTotal)
	assert.NotNil(t, r.DecisionsTotal)
	assert.NotNil(t, r.AutosaveTotal)
	assert.NotNil(t, r.registry)
}

func TestDefaultRegistry(t *testing.T) {
	assert.Same(t, DefaultRegistry(), DefaultRegistry())
}

// Независимые реестры не конфликтуют при регистрации
func TestNewRegistry_Independent(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = NewRegistry()
		_ = NewRegistry()
	})
}

func TestRecordEnvelope(t *testing.T) {
	r := NewRegistry()
	r.RecordEnvelope(DirectionIn, "sync", 10)
	r.RecordEnvelope(DirectionIn, "sync", 5)
	r.RecordEnvelope(DirectionOut, "reject", 7)

	assert.Equal(t, 2.0, counterValue(t, r.EnvelopesTotal.WithLabelValues(DirectionIn, "sync")))
	assert.Equal(t, 1.0, counterValue(t, r.EnvelopesTotal.WithLabelValues(DirectionOut, "reject")))
	assert.Equal(t, 15.0, counterValue(t, r.EnvelopeBytesTotal.WithLabelValues(DirectionIn)))
}

func TestRecordDecision(t *testing.T) {
	r := NewRegistry()
	r.RecordDecision(true, "add")
	r.RecordDecision(false, "update")
	r.RecordDecision(false, "update")

	assert.Equal(t, 1.0, counterValue(t, r.DecisionsTotal.WithLabelValues(ResultAdmitted, "add")))
	assert.Equal(t, 2.0, counterValue(t, r.DecisionsTotal.WithLabelValues(ResultRejected, "update")))
}

func TestRecordSave(t *testing.T) {
	r := NewRegistry()
	r.RecordSave(nil, 10*time.Millisecond)
	r.RecordSave(errors.New("disk full"), time.Millisecond)

	assert.Equal(t, 1.0, counterValue(t, r.AutosaveTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, counterValue(t, r.AutosaveTotal.WithLabelValues(ResultFailed)))
}

func TestRecordJoinAndPeers(t *testing.T) {
	r := NewRegistry()
	r.RecordJoin(true)
	r.RecordJoin(false)
	r.SetPeers(3)

	var m dto.Metric
	require.NoError(t, r.PeersConnected.Write(&m))
	assert.Equal(t, 3.0, m.GetGauge().GetValue())
	assert.Equal(t, 1.0, counterValue(t, r.PeerJoinsTotal.WithLabelValues(ResultFailed)))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.SetPeers(2)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "gophreview_peers_connected 2"))
}

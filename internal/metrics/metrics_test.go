package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDeployResultCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DeployResult("netlify", nil)
	m.DeployResult("netlify", errors.New("boom"))
	m.DeployResult("netlify", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deployResults.WithLabelValues("netlify", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deployResults.WithLabelValues("netlify", "failure")))
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)
	second := New(reg)

	first.ObserveBuild(time.Second, nil)
	second.DeployResult("vercel", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(first.deployResults.WithLabelValues("vercel", "success")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/healthz", 200, time.Millisecond)
		m.ObserveBuild(time.Millisecond, nil)
		m.DeployResult("netlify", nil)
	})
}

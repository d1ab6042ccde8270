package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/model"
)

func TestNewMetrics_PreRegistersTrafficLights(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("referral", reg)

	assert.Equal(t, len(model.AllTrafficLights), testutil.CollectAndCount(m.ReadingsClassified))

	m.ObserveReading(model.TrafficLightRedUp)
	m.ObserveReading(model.TrafficLightRedUp)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReadingsClassified.WithLabelValues("RED_UP")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ReadingsClassified.WithLabelValues("GREEN")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestObserveReading_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveReading(model.TrafficLightGreen) })
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop()
		Nop()
	})
}

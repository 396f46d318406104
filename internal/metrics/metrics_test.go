package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistersIndependently(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.CardsClosed.Inc()
	a.Redemptions.WithLabelValues("ok").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.CardsClosed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CardsClosed))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.Redemptions.WithLabelValues("ok")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

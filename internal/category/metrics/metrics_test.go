package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRename(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveRename(OutcomeSuccess, 3, time.Now())
	m.ObserveRename(OutcomeConflict, 0, time.Now())
	m.ObserveRename(OutcomeFailed, 5, time.Now())

	assert.InDelta(t, 1, testutil.ToFloat64(m.RenamesTotal.WithLabelValues(OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RenamesTotal.WithLabelValues(OutcomeConflict)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.AccountsReassigned), 0, "failed renames reassign nothing")
	assert.Equal(t, 1, testutil.CollectAndCount(m.RenameDuration))
}

func TestIncrementCacheLookup(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())
	m.IncrementCacheLookup("hit")
	m.IncrementCacheLookup("hit")
	m.IncrementCacheLookup("miss")

	assert.InDelta(t, 2, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")), 0)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/queue"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
)

func TestDeliverToSink(t *testing.T) {
	snk := &fakeSink{}
	q := queue.NewMemQueue()
	c := NewCoordinator(NewOnlineSession(snk), q, &nopObs{}, 0)

	out, err := c.Deliver(context.Background(), rec("1.5"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, out)
	assert.Equal(t, []string{"1.5"}, raws(snk.accepted()))
	assert.False(t, q.Pending())
}

func TestDeliverOfflineQueues(t *testing.T) {
	q := queue.NewMemQueue()
	c := NewCoordinator(NewSession(nil), q, &nopObs{}, 0)

	out, err := c.Deliver(context.Background(), rec("2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, out)
	assert.Equal(t, 1, q.Len())
}

func TestDeliverSinkFailureQueues(t *testing.T) {
	snk := &fakeSink{fail: func(int, *domain.Record) bool { return true }}
	q := queue.NewMemQueue()
	obs := &nopObs{}
	c := NewCoordinator(NewOnlineSession(snk), q, obs, 0)

	out, err := c.Deliver(context.Background(), rec("3"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, out)
	assert.Empty(t, snk.accepted())
	assert.Equal(t, 1, q.Len())
	assert.Contains(t, obs.errors, "sink_append_failed")
}

func TestDeliverQueueFailureIsSurfaced(t *testing.T) {
	q := queue.NewMemQueue()
	boom := errors.New("disk full")
	q.FailAppends(boom)
	c := NewCoordinator(NewSession(nil), q, &nopObs{}, 0)

	out, err := c.Deliver(context.Background(), rec("4"))
	assert.Equal(t, OutcomeLost, out)
	assert.ErrorIs(t, err, ErrQueueAppend)
	assert.ErrorIs(t, err, boom)
}

func TestDeliverRejectsMissingValue(t *testing.T) {
	q := queue.NewMemQueue()
	c := NewCoordinator(NewSession(nil), q, &nopObs{}, 0)

	_, err := c.Deliver(context.Background(), &domain.Record{Raw: "junk"})
	assert.ErrorIs(t, err, ErrNoValue)
	assert.False(t, q.Pending())
}

func TestDeliverEveryRecordLandsExactlyOnce(t *testing.T) {
	for _, k := range []int{1, 2, 3, 7} {
		t.Run(fmt.Sprintf("fail every %d", k), func(t *testing.T) {
			const n = 50
			snk := &fakeSink{fail: func(call int, _ *domain.Record) bool { return call%k == 0 }}
			q := queue.NewMemQueue()
			c := NewCoordinator(NewOnlineSession(snk), q, &nopObs{}, 0)

			for i := 0; i < n; i++ {
				_, err := c.Deliver(context.Background(), rec(fmt.Sprint(i)))
				require.NoError(t, err)
			}

			queued, err := q.ReadAll()
			require.NoError(t, err)

			seen := map[string]int{}
			for _, r := range append(snk.accepted(), queued...) {
				seen[r.Raw]++
			}
			require.Len(t, seen, n)
			for raw, count := range seen {
				assert.Equal(t, 1, count, "record %s", raw)
			}
			assert.Equal(t, n/k, len(queued))
		})
	}
}

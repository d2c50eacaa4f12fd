package kafkanet

import (
	stderrors "errors"
	"testing"
	"time"

	producererrors "github.com/nrandell/kafka-net/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubmission(topic string) *submission {
	return &submission{topic: topic, completion: newCompletion(), enqueuedAt: time.Now()}
}

func TestIngressQueueAddAndTakeBatchByCount(t *testing.T) {
	q := newIngressQueue(10)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Add(newTestSubmission("t")))
	}

	batch, err := q.TakeBatch(2, time.Second, nil)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.Equal(t, 1, q.Count())
}

func TestIngressQueueTakeBatchByDelay(t *testing.T) {
	q := newIngressQueue(10)
	require.NoError(t, q.Add(newTestSubmission("t")))

	start := time.Now()
	batch, err := q.TakeBatch(100, 30*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestIngressQueueTakeBatchWaitsForFirstItem(t *testing.T) {
	q := newIngressQueue(10)

	done := make(chan []*submission, 1)
	go func() {
		batch, err := q.TakeBatch(5, time.Second, nil)
		assert.NoError(t, err)
		done <- batch
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Add(newTestSubmission("t")))

	select {
	case batch := <-done:
		assert.Len(t, batch, 1)
	case <-time.After(time.Second):
		t.Fatal("TakeBatch never returned after an item was added")
	}
}

func TestIngressQueueTakeBatchSealedReturnsImmediately(t *testing.T) {
	q := newIngressQueue(10)
	q.Seal()

	batch, err := q.TakeBatch(5, time.Second, nil)
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestIngressQueueTakeBatchSealedMidWaitReturnsResidual(t *testing.T) {
	q := newIngressQueue(10)
	require.NoError(t, q.Add(newTestSubmission("t")))

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Seal()
	}()

	batch, err := q.TakeBatch(5, time.Second, nil)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestIngressQueueTakeBatchCancelLosesNoItems(t *testing.T) {
	q := newIngressQueue(10)
	require.NoError(t, q.Add(newTestSubmission("t")))

	cancel := make(chan struct{})
	close(cancel)

	batch, err := q.TakeBatch(5, time.Second, cancel)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, producererrors.Cancelled()))
	assert.Nil(t, batch)

	assert.Equal(t, 1, q.Count(), "a cancelled TakeBatch must not remove the pending item")
}

func TestIngressQueueAddBlocksAtCapacity(t *testing.T) {
	q := newIngressQueue(1)
	require.NoError(t, q.Add(newTestSubmission("t")))

	addDone := make(chan error, 1)
	go func() {
		addDone <- q.Add(newTestSubmission("t2"))
	}()

	select {
	case <-addDone:
		t.Fatal("Add should have blocked while the queue was at capacity")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := q.TakeBatch(1, time.Second, nil)
	require.NoError(t, err)

	select {
	case err := <-addDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Add never unblocked after space freed up")
	}
}

func TestIngressQueueAddFailsSealed(t *testing.T) {
	q := newIngressQueue(10)
	q.Seal()
	err := q.Add(newTestSubmission("t"))
	require.Error(t, err)
}

func TestIngressQueueIsCompleted(t *testing.T) {
	q := newIngressQueue(10)
	assert.False(t, q.IsCompleted())

	require.NoError(t, q.Add(newTestSubmission("t")))
	q.Seal()
	assert.False(t, q.IsCompleted(), "sealed but non-empty is not yet completed")

	q.Drain()
	assert.True(t, q.IsCompleted())
}

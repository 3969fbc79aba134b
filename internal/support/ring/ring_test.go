package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniyakcom/eventengine/core"
)

func TestPutGet_FIFO(t *testing.T) {
	q := New(4)
	p1 := &core.Payload{SeqID: 1}
	p2 := &core.Payload{SeqID: 2}

	require.NoError(t, q.Put(p1))
	require.NoError(t, q.Put(p2))

	got1, err := q.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got1.SeqID)

	got2, err := q.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got2.SeqID)
}

func TestPut_NonBlockingFailsWhenFull(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Put(&core.Payload{}))
	require.NoError(t, q.Put(&core.Payload{}))

	err := q.Put(&core.Payload{})
	assert.True(t, core.IsQueueFull(err))
}

func TestGet_NonBlockingFailsWhenEmpty(t *testing.T) {
	q := New(2)
	_, err := q.Get()
	assert.True(t, core.IsQueueEmpty(err))
}

func TestPutAwait_UnblocksOnGet(t *testing.T) {
	q := New(1)
	require.NoError(t, q.Put(&core.Payload{SeqID: 1}))

	done := make(chan error, 1)
	go func() {
		done <- q.PutAwait(&core.Payload{SeqID: 2})
	}()

	select {
	case <-done:
		t.Fatal("PutAwait returned before space was freed")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := q.Get()
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("PutAwait never unblocked")
	}
}

func TestGetHybrid_SpinThenWaitThenSucceeds(t *testing.T) {
	q := New(2)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Put(&core.Payload{SeqID: 7})
	}()

	p, err := q.GetHybrid(100, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.SeqID)
}

func TestGetHybrid_TimesOut(t *testing.T) {
	q := New(2)
	_, err := q.GetHybrid(10, 20*time.Millisecond)
	assert.True(t, core.IsQueueEmpty(err))
}

func TestClose_UnblocksWaiters(t *testing.T) {
	q := New(1)
	done := make(chan error, 1)
	go func() {
		_, err := q.GetAwait()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("GetAwait never unblocked after Close")
	}
}

func TestClose_DrainsRemainingItemsFirst(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Put(&core.Payload{SeqID: 1}))
	q.Close()

	p, err := q.GetAwait()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.SeqID)

	_, err = q.GetAwait()
	assert.Error(t, err)
}

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"main/internal/frame"
	"main/pkg/exception"
)

func TestClaimResolve(t *testing.T) {
	reg := New(nil)

	slot, err := reg.Claim("ns-1")
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	reply := frame.Inbound{Action: frame.ActionProfile, NS: "ns-1"}
	require.True(t, reg.Resolve("ns-1", reply))
	require.Equal(t, 0, reg.Len())

	got, err := slot.Wait(context.Background(), nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, frame.ActionProfile, got.Action)
}

func TestResolveWithoutSlot(t *testing.T) {
	reg := New(nil)
	if reg.Resolve("nobody", frame.Inbound{}) {
		t.Fatal("resolve without a pending slot should report false")
	}
}

func TestResolveIdempotent(t *testing.T) {
	reg := New(nil)

	slot, err := reg.Claim("k")
	require.NoError(t, err)

	require.True(t, reg.Resolve("k", frame.Inbound{Action: frame.ActionAssets}))
	// The slot was reclaimed; a second resolve finds nothing.
	require.False(t, reg.Resolve("k", frame.Inbound{Action: frame.ActionProfile}))

	got, err := slot.Wait(context.Background(), nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, frame.ActionAssets, got.Action)
}

func TestDoubleClaimRejected(t *testing.T) {
	reg := New(nil)

	_, err := reg.Claim("dup")
	require.NoError(t, err)

	_, err = reg.Claim("dup")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrKeyAlreadyAwaited))
}

func TestFailPropagatesError(t *testing.T) {
	reg := New(nil)

	slot, err := reg.Claim("bad")
	require.NoError(t, err)

	cause := errors.Wrap(exception.ErrVenueRejected, "asset closed")
	require.True(t, reg.Fail("bad", cause))

	_, err = slot.Wait(context.Background(), nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrVenueRejected))
}

func TestWaitTimeout(t *testing.T) {
	mock := clock.NewMock()
	reg := New(mock)

	slot, err := reg.Claim("slow")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, waitErr := slot.Wait(context.Background(), mock, 5*time.Second)
		done <- waitErr
	}()

	// Let the waiter park on the timer before advancing.
	time.Sleep(10 * time.Millisecond)
	mock.Add(6 * time.Second)

	select {
	case waitErr := <-done:
		assert.True(t, errors.Is(waitErr, exception.ErrAwaitTimeout))
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never timed out")
	}

	// A timed-out slot no longer blocks the key.
	_, err = reg.Claim("slow")
	require.NoError(t, err)
}

func TestLateResolveAfterTimeoutIsAbsorbed(t *testing.T) {
	mock := clock.NewMock()
	reg := New(mock)

	slot, err := reg.Claim("late")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, waitErr := slot.Wait(context.Background(), mock, time.Second)
		done <- waitErr
	}()
	time.Sleep(10 * time.Millisecond)
	mock.Add(2 * time.Second)
	require.Error(t, <-done)

	// The frame arriving after expiry still reclaims the slot quietly.
	require.True(t, reg.Resolve("late", frame.Inbound{Action: frame.ActionPong}))
	require.Equal(t, 0, reg.Len())
}

func TestWaitCanceledContext(t *testing.T) {
	reg := New(nil)
	slot, err := reg.Claim("ctx")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = slot.Wait(ctx, nil, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwait(t *testing.T) {
	reg := New(nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		reg.Resolve("pong", frame.Inbound{Action: frame.ActionPong})
	}()

	got, err := reg.Await(context.Background(), "pong", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, frame.ActionPong, got.Action)
}

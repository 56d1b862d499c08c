package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciena/ofcore/openflow/of13"
)

func TestAllocateNeverZero(t *testing.T) {
	r := New()
	for i := 0; i < 100; i++ {
		assert.NotZero(t, r.Allocate())
	}
}

func TestAllocateMonotonic(t *testing.T) {
	r := New()
	a := r.Allocate()
	b := r.Allocate()
	assert.Equal(t, a+1, b)
}

func TestAllocateSkipsBusyIDs(t *testing.T) {
	r := New()
	first := r.Allocate()
	_, err := r.Register(first+1, time.Now().Add(time.Minute))
	require.NoError(t, err)
	next := r.Allocate()
	assert.Equal(t, first+2, next)
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	_, err := r.Register(7, time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = r.Register(7, time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrDuplicateXID)
}

func TestResolveDeliversReply(t *testing.T) {
	r := New()
	p, err := r.Register(9, time.Now().Add(time.Minute))
	require.NoError(t, err)

	reply := of13.NewEchoRequest(9)
	require.True(t, r.Resolve(9, reply))

	m, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reply, m)
	assert.Equal(t, 0, r.Len())
}

func TestResolveUnsolicited(t *testing.T) {
	r := New()
	assert.False(t, r.Resolve(404, of13.NewEchoRequest(404)))
}

func TestResolveOnlyOnce(t *testing.T) {
	r := New()
	_, err := r.Register(3, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, r.Resolve(3, of13.NewEchoRequest(3)))
	assert.False(t, r.Resolve(3, of13.NewEchoRequest(3)))
}

func TestSweepExpires(t *testing.T) {
	r := New()
	p, err := r.Register(5, time.Now().Add(-time.Second))
	require.NoError(t, err)
	fresh, err := r.Register(6, time.Now().Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 1, r.Sweep(time.Now()))
	assert.Equal(t, 1, r.Len())

	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)

	// The unexpired entry is untouched.
	select {
	case <-fresh.Done():
		t.Fatal("unexpired transaction completed by sweep")
	default:
	}
}

func TestCloseFailsOutstanding(t *testing.T) {
	r := New()
	p, err := r.Register(2, time.Now().Add(time.Minute))
	require.NoError(t, err)

	r.Close()
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	// Registration after close is refused.
	_, err = r.Register(8, time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	r.Close()
}

func TestWaitHonorsContext(t *testing.T) {
	r := New()
	p, err := r.Register(1, time.Now().Add(time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mylesscott/portfolio/internal/videoembed"
)

func TestReportDeliversOnThresholdCrossings(t *testing.T) {
	h := New(nil)
	var got []float64
	_, err := h.Observe("c1", 0.5, func(e videoembed.Entry) { got = append(got, e.Ratio) })
	require.NoError(t, err)

	assert.Equal(t, 1, h.Report("c1", 0.1)) // initial notification
	assert.Equal(t, 0, h.Report("c1", 0.3))
	assert.Equal(t, 1, h.Report("c1", 0.6))
	assert.Equal(t, 0, h.Report("c1", 0.9))
	assert.Equal(t, 1, h.Report("c1", 0.2))
	assert.Equal(t, []float64{0.1, 0.6, 0.2}, got)
}

func TestReportIgnoresOtherTargets(t *testing.T) {
	h := New(nil)
	called := false
	_, err := h.Observe("c1", 0.5, func(videoembed.Entry) { called = true })
	require.NoError(t, err)

	assert.Equal(t, 0, h.Report("c2", 1))
	assert.False(t, called)
}

func TestReportClampsRatio(t *testing.T) {
	h := New(nil)
	var got float64
	_, err := h.Observe("c1", 0.5, func(e videoembed.Entry) { got = e.Ratio })
	require.NoError(t, err)

	h.Report("c1", 3)
	assert.Equal(t, 1.0, got)
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := New(nil)
	var deltas []int
	h.OnChange(func(d int) { deltas = append(deltas, d) })

	sub, err := h.Observe("c1", 0.5, func(videoembed.Entry) {})
	require.NoError(t, err)
	assert.Equal(t, 1, h.Live())

	sub.Release()
	sub.Release()
	assert.Equal(t, 0, h.Live())
	assert.Equal(t, []int{1, -1}, deltas)
	assert.Equal(t, 0, h.Report("c1", 1))
}

func TestCallbackMayReleaseItself(t *testing.T) {
	h := New(nil)
	var sub videoembed.Subscription
	calls := 0
	sub, err := h.Observe("c1", 0.5, func(videoembed.Entry) {
		calls++
		sub.Release()
	})
	require.NoError(t, err)

	h.Report("c1", 1)
	h.Report("c1", 0)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, h.Live())
}

func TestClosedHostRejectsObserve(t *testing.T) {
	h := New(nil)
	sub, err := h.Observe("c1", 0.5, func(videoembed.Entry) {})
	require.NoError(t, err)

	h.Close()
	_, err = h.Observe("c2", 0.5, func(videoembed.Entry) {})
	assert.ErrorIs(t, err, ErrClosed)

	sub.Release()
	assert.Equal(t, 0, h.Live())
}

func TestEmbedLifecycleOnHost(t *testing.T) {
	h := New(nil)
	e := videoembed.New("https://youtu.be/LmHFdx8SZsU", 5)
	require.NoError(t, e.Mount(h, "c1"))

	h.Report("c1", 0.3)
	assert.Equal(t, videoembed.Dormant, e.State())
	h.Report("c1", 0.5)
	assert.Equal(t, videoembed.Active, e.State())
	h.Report("c1", 0)
	h.Report("c1", 1)
	assert.Equal(t, videoembed.Active, e.State())

	e.Unmount()
	e.Unmount()
	assert.Equal(t, 0, h.Live())
}

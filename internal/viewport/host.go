// Package viewport is an in-process stand-in for the browser's intersection
// observer. Clients report the visible ratio of a container and the host
// fans it out to the registrations observing that container.
package viewport

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mylesscott/portfolio/internal/videoembed"
)

var ErrClosed = errors.New("viewport host closed")

type registration struct {
	host      *Host
	target    string
	threshold float64
	fn        func(videoembed.Entry)
	last      float64
	seen      bool
	once      sync.Once
}

func (r *registration) Release() {
	r.once.Do(func() { r.host.remove(r) })
}

// crossed reports whether moving from the last ratio to ratio crosses the
// registration threshold in either direction.
func (r *registration) crossed(ratio float64) bool {
	if !r.seen {
		return true
	}
	return (r.last < r.threshold) != (ratio < r.threshold)
}

// Host tracks observation registrations by container id.
type Host struct {
	log *zap.Logger

	mu      sync.Mutex
	regs    map[string]map[*registration]struct{}
	live    int
	closed  bool
	onDelta func(int)
}

func New(log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	return &Host{
		log:  log,
		regs: make(map[string]map[*registration]struct{}),
	}
}

// OnChange sets a hook called with +1 or -1 whenever a registration is
// added or released.
func (h *Host) OnChange(fn func(delta int)) {
	h.mu.Lock()
	h.onDelta = fn
	h.mu.Unlock()
}

// Observe implements videoembed.Observer.
func (h *Host) Observe(target string, threshold float64, fn func(videoembed.Entry)) (videoembed.Subscription, error) {
	r := &registration{host: h, target: target, threshold: threshold, fn: fn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	set, ok := h.regs[target]
	if !ok {
		set = make(map[*registration]struct{})
		h.regs[target] = set
	}
	set[r] = struct{}{}
	h.live++
	delta := h.onDelta
	h.mu.Unlock()

	if delta != nil {
		delta(1)
	}
	h.log.Debug("observe", zap.String("target", target), zap.Float64("threshold", threshold))
	return r, nil
}

func (h *Host) remove(r *registration) {
	h.mu.Lock()
	set, ok := h.regs[r.target]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[r]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, r)
	if len(set) == 0 {
		delete(h.regs, r.target)
	}
	h.live--
	delta := h.onDelta
	h.mu.Unlock()

	if delta != nil {
		delta(-1)
	}
	h.log.Debug("unobserve", zap.String("target", r.target))
}

// Report records the visible ratio of target and notifies every registration
// whose threshold the change crossed. It returns the number of callbacks run.
func (h *Host) Report(target string, ratio float64) int {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	h.mu.Lock()
	var due []*registration
	for r := range h.regs[target] {
		if r.crossed(ratio) {
			due = append(due, r)
		}
		r.last = ratio
		r.seen = true
	}
	h.mu.Unlock()

	// Callbacks may release their own registration.
	entry := videoembed.Entry{Target: target, Ratio: ratio}
	for _, r := range due {
		r.fn(entry)
	}
	return len(due)
}

// Live is the number of registrations not yet released.
func (h *Host) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

// Close refuses further registrations. Existing ones stay valid until
// released.
func (h *Host) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

package videoembed

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// DefaultStart is the playback offset used when none is configured.
	DefaultStart = 5

	// ActivationThreshold is the visible fraction of the container that
	// switches the embed to autoplay.
	ActivationThreshold = 0.5
)

var ErrAlreadyMounted = errors.New("embed already mounted")

// State is the activation state of an embed.
type State int

const (
	Dormant State = iota
	Active
)

func (s State) String() string {
	switch s {
	case Dormant:
		return "dormant"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Embed is a lazily activated video player. It starts Dormant and becomes
// Active the first time its container is at least half visible. Active is
// terminal for the lifetime of the embed.
type Embed struct {
	ref   string
	id    string
	start int

	mu         sync.Mutex
	state      State
	sub        Subscription
	mounting   bool
	onActivate func(*Embed)
}

// New returns a dormant embed for ref, which may be a bare identifier or a
// video URL. Negative start offsets are clamped to zero.
func New(ref string, start int) *Embed {
	if start < 0 {
		start = 0
	}
	return &Embed{
		ref:   ref,
		id:    ExtractID(ref),
		start: start,
	}
}

func (e *Embed) Ref() string     { return e.ref }
func (e *Embed) VideoID() string { return e.id }
func (e *Embed) Start() int      { return e.start }

func (e *Embed) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Embed) Active() bool { return e.State() == Active }

// URL is the player URL for the current state.
func (e *Embed) URL() string {
	return BuildURL(e.id, e.start, e.Active())
}

// OnActivate registers fn to run once, after the Dormant to Active
// transition. It must be set before Mount.
func (e *Embed) OnActivate(fn func(*Embed)) {
	e.mu.Lock()
	e.onActivate = fn
	e.mu.Unlock()
}

// Mount registers a single observation of target on obs. The registration
// is held until Unmount.
func (e *Embed) Mount(obs Observer, target string) error {
	e.mu.Lock()
	if e.sub != nil || e.mounting {
		e.mu.Unlock()
		return ErrAlreadyMounted
	}
	e.mounting = true
	e.mu.Unlock()

	// The host may deliver the initial entry from inside Observe.
	sub, err := obs.Observe(target, ActivationThreshold, e.handle)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.mounting = false
	if err != nil {
		return fmt.Errorf("observe %s: %w", target, err)
	}
	e.sub = sub
	return nil
}

// Unmount releases the observation. Calling it more than once, or on an
// embed that was never mounted, does nothing.
func (e *Embed) Unmount() {
	e.mu.Lock()
	sub := e.sub
	e.sub = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Release()
	}
}

// Mounted reports whether the embed holds an observation.
func (e *Embed) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sub != nil
}

func (e *Embed) handle(entry Entry) {
	if !e.activate(entry.Ratio) {
		return
	}
	e.mu.Lock()
	fn := e.onActivate
	e.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// activate applies one intersection entry and reports whether it caused the
// transition.
func (e *Embed) activate(ratio float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Active {
		return false
	}
	if ratio < ActivationThreshold {
		return false
	}
	e.state = Active
	return true
}

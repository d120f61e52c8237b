// Package embeds ties page views to video embed lifecycles. Every rendered
// page mounts its own instances; the browser reports visibility back over
// HTTP and releases them when the page goes away. Instances the browser
// never released are reaped after an idle timeout.
package embeds

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mylesscott/portfolio/internal/metrics"
	"github.com/mylesscott/portfolio/internal/videoembed"
	"github.com/mylesscott/portfolio/internal/viewport"
)

var (
	ErrUnknownInstance = errors.New("unknown embed instance")
	ErrInvalidID       = errors.New("invalid embed instance id")
)

// ActivationRecorder persists the first autoplay of an instance.
type ActivationRecorder interface {
	RecordActivation(ctx context.Context, instanceID, videoID string, at time.Time) error
}

// Instance is one mounted embed on one page view.
type Instance struct {
	ID    string
	Embed *videoembed.Embed

	mountedAt time.Time
	lastSeen  time.Time
}

// ContainerID is the DOM id of the element wrapping the player.
func (i *Instance) ContainerID() string { return "embed-" + i.ID }

// InstanceInfo is a read-only view of an instance for the admin page.
type InstanceInfo struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	State     string    `json:"state"`
	MountedAt time.Time `json:"mounted_at"`
	LastSeen  time.Time `json:"last_seen"`
}

type Registry struct {
	host     *viewport.Host
	recorder ActivationRecorder
	metrics  *metrics.Embeds
	log      *zap.Logger
	ttl      time.Duration
	limit    int
	now      func() time.Time

	mu        sync.Mutex
	instances map[string]*Instance
}

type Option func(*Registry)

func WithRecorder(r ActivationRecorder) Option { return func(reg *Registry) { reg.recorder = r } }
func WithMetrics(m *metrics.Embeds) Option     { return func(reg *Registry) { reg.metrics = m } }
func WithLogger(l *zap.Logger) Option          { return func(reg *Registry) { reg.log = l } }
func WithClock(now func() time.Time) Option    { return func(reg *Registry) { reg.now = now } }

// WithLimit caps live instances; mounting past the cap evicts the one idle
// the longest. Zero means no cap.
func WithLimit(n int) Option { return func(reg *Registry) { reg.limit = n } }

func NewRegistry(host *viewport.Host, ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{
		host:      host,
		ttl:       ttl,
		log:       zap.NewNop(),
		now:       time.Now,
		instances: make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics != nil {
		host.OnChange(func(delta int) { r.metrics.Registrations.Add(float64(delta)) })
	}
	return r
}

// Mount creates and mounts a dormant embed for ref.
func (r *Registry) Mount(ref string, start int) (*Instance, error) {
	return r.mount(uuid.NewString(), ref, start)
}

// Restore returns the live instance with id, or mounts a fresh dormant one
// under the same id when it was already released. Pages left open past the
// idle timeout, or restored from the back/forward cache, still activate on
// their first visibility report.
func (r *Registry) Restore(id, ref string, start int) (*Instance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	if inst, ok := r.Get(id); ok {
		return inst, nil
	}
	inst, err := r.mount(id, ref, start)
	if err != nil {
		return nil, err
	}
	r.log.Debug("embed restored", zap.String("instance", id))
	return inst, nil
}

func (r *Registry) mount(id, ref string, start int) (*Instance, error) {
	now := r.now()
	inst := &Instance{
		ID:        id,
		Embed:     videoembed.New(ref, start),
		mountedAt: now,
		lastSeen:  now,
	}
	inst.Embed.OnActivate(func(*videoembed.Embed) { r.activated(inst) })

	if err := inst.Embed.Mount(r.host, inst.ContainerID()); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if prev, ok := r.instances[id]; ok {
		// Lost a race with a concurrent restore of the same id.
		r.mu.Unlock()
		inst.Embed.Unmount()
		return prev, nil
	}
	r.instances[id] = inst
	evict := r.oldestOverLimit(id)
	r.mu.Unlock()

	for _, old := range evict {
		r.release(old, "evicted")
	}
	if r.metrics != nil {
		r.metrics.Mounted.Inc()
	}
	r.log.Debug("embed mounted", zap.String("instance", id), zap.String("video", inst.Embed.VideoID()))
	return inst, nil
}

// oldestOverLimit lists the least recently seen instances beyond the cap,
// never keep. Callers hold r.mu.
func (r *Registry) oldestOverLimit(keep string) []string {
	over := len(r.instances) - r.limit
	if r.limit <= 0 || over <= 0 {
		return nil
	}
	all := make([]*Instance, 0, len(r.instances)-1)
	for id, inst := range r.instances {
		if id != keep {
			all = append(all, inst)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lastSeen.Before(all[j].lastSeen) })
	ids := make([]string, 0, over)
	for _, inst := range all[:over] {
		ids = append(ids, inst.ID)
	}
	return ids
}

func (r *Registry) activated(inst *Instance) {
	video := inst.Embed.VideoID()
	r.log.Info("embed activated", zap.String("instance", inst.ID), zap.String("video", video))
	if r.metrics != nil {
		r.metrics.Activated.WithLabelValues(video).Inc()
	}
	if r.recorder == nil {
		return
	}
	// Activations outlive the request that triggered them.
	if err := r.recorder.RecordActivation(context.Background(), inst.ID, video, r.now()); err != nil {
		r.log.Warn("record activation", zap.String("instance", inst.ID), zap.Error(err))
	}
}

// Intersect reports the visible ratio of an instance's container.
func (r *Registry) Intersect(id string, ratio float64) (*Instance, error) {
	r.mu.Lock()
	inst, ok := r.instances[id]
	if ok {
		inst.lastSeen = r.now()
	}
	r.mu.Unlock()
	if !ok {
		return nil, ErrUnknownInstance
	}

	r.host.Report(inst.ContainerID(), ratio)
	return inst, nil
}

// Get returns the instance with id.
func (r *Registry) Get(id string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// Release unmounts the instance. It reports false when id is unknown or was
// already released.
func (r *Registry) Release(id string) bool {
	return r.release(id, "client")
}

func (r *Registry) release(id, reason string) bool {
	r.mu.Lock()
	inst, ok := r.instances[id]
	delete(r.instances, id)
	r.mu.Unlock()
	if !ok {
		return false
	}

	inst.Embed.Unmount()
	if r.metrics != nil {
		r.metrics.Released.WithLabelValues(reason).Inc()
	}
	r.log.Debug("embed released", zap.String("instance", id), zap.String("reason", reason))
	return true
}

// Reap releases instances idle since before now minus the TTL and returns
// how many were released.
func (r *Registry) Reap(now time.Time) int {
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	var stale []string
	for id, inst := range r.instances {
		if inst.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	n := 0
	for _, id := range stale {
		if r.release(id, "expired") {
			n++
		}
	}
	if n > 0 {
		r.log.Info("reaped idle embeds", zap.Int("count", n))
	}
	return n
}

// Run reaps idle instances until ctx is done, then releases everything.
func (r *Registry) Run(ctx context.Context) {
	interval := r.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap(r.now())
		}
	}
}

// Close releases every live instance.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.release(id, "shutdown")
	}
}

// Len is the number of live instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Snapshot lists live instances, oldest first.
func (r *Registry) Snapshot() []InstanceInfo {
	r.mu.Lock()
	out := make([]InstanceInfo, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, InstanceInfo{
			ID:        inst.ID,
			VideoID:   inst.Embed.VideoID(),
			MountedAt: inst.mountedAt,
			LastSeen:  inst.lastSeen,
			State:     inst.Embed.State().String(),
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MountedAt.Before(out[j].MountedAt) })
	return out
}

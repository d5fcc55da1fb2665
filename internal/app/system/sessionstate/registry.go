// internal/app/system/sessionstate/registry.go
//
// Package sessionstate keeps the per-browser state of the dashboard on the
// server: the login tab, the OTP step, the cascading selection and the
// backend credentials. The browser only carries the entry id in its signed
// session cookie.
package sessionstate

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/dalemusser/chipdash/internal/app/system/authclient"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/logintab"
	"github.com/dalemusser/chipdash/internal/app/system/otpflow"
	"github.com/dalemusser/chipdash/internal/app/system/selection"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// Data is the mutable part of an Entry.
type Data struct {
	Tab    logintab.State
	OTP    otpflow.State
	Target authclient.OTPTarget
	// Pending holds the password login result until the OTP is verified.
	Pending *models.LoginResult
	// User is set once sign in completes.
	User       *models.ChipUser
	Token      string
	SignedInAt time.Time
}

// SignedIn reports whether sign in completed.
func (d Data) SignedIn() bool { return d.User != nil }

// Entry is one browser session's state.
type Entry struct {
	Selector *selection.Selector

	jar http.CookieJar

	mu       sync.Mutex
	id       string
	data     Data
	lastSeen time.Time
}

// ID is the key stored in the session cookie.
func (e *Entry) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Snapshot returns a copy of the entry's data.
func (e *Entry) Snapshot() Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

// Update runs fn with the entry locked. fn must not block on the network.
// If fn returns an error the data is left as it was.
func (e *Entry) Update(fn func(d *Data) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.data
	if err := fn(&next); err != nil {
		return err
	}
	e.data = next
	return nil
}

// Backend returns the credentials backend calls for this session use.
func (e *Entry) Backend() *chipapi.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &chipapi.Session{Token: e.data.Token, Jar: e.jar}
}

func (e *Entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastSeen = now
	e.mu.Unlock()
}

func (e *Entry) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

// Registry maps entry ids to entries and evicts idle ones.
type Registry struct {
	ttl         time.Duration
	newSelector func() *selection.Selector
	log         *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Options configure a Registry.
type Options struct {
	// IdleTTL is how long an untouched entry lives. Zero means 30 minutes.
	IdleTTL time.Duration
	// SweepEvery is the sweeper period. Zero means IdleTTL/4; negative
	// disables the background sweeper.
	SweepEvery time.Duration
	// NewSelector builds the selector for each new entry.
	NewSelector func() *selection.Selector
	Now         func() time.Time
}

// NewRegistry creates a registry and starts its sweeper. Call Close when done.
func NewRegistry(opts Options, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewSelector == nil {
		opts.NewSelector = func() *selection.Selector { return selection.NewSelector(nil, logger) }
	}
	r := &Registry{
		ttl:         opts.IdleTTL,
		newSelector: opts.NewSelector,
		log:         logger,
		now:         opts.Now,
		entries:     make(map[string]*Entry),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	every := opts.SweepEvery
	if every == 0 {
		every = opts.IdleTTL / 4
	}
	if every > 0 {
		go r.sweepLoop(every)
	} else {
		close(r.done)
	}
	return r
}

// Create adds a fresh entry with the login tab on email.
func (r *Registry) Create() *Entry {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	e := &Entry{
		Selector: r.newSelector(),
		jar:      jar,
		id:       uuid.NewString(),
		data:     Data{Tab: logintab.Initial()},
		lastSeen: r.now(),
	}
	r.mu.Lock()
	r.entries[e.id] = e
	r.mu.Unlock()
	return e
}

// Get returns the live entry for id and marks it as seen.
func (r *Registry) Get(id string) (*Entry, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.Sub(e.idleSince()) > r.ttl {
		r.Delete(id)
		return nil, false
	}
	e.touch(now)
	return e, true
}

// Rotate moves the entry to a new id and returns it. The old id stops
// resolving. Used when a session signs in.
func (r *Registry) Rotate(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	next := uuid.NewString()
	e.mu.Lock()
	e.id = next
	e.lastSeen = r.now()
	e.mu.Unlock()
	r.entries[next] = e
	return e, true
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts entries idle longer than the TTL and returns how many.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.idleSince().Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

func (r *Registry) sweepLoop(every time.Duration) {
	defer close(r.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug("evicted idle session state", zap.Int("count", n))
			}
		}
	}
}

// Close stops the sweeper and waits for it to exit. Safe to call twice.
func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.stop) })
	<-r.done
}

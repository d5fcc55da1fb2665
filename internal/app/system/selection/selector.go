// internal/app/system/selection/selector.go
package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownOption is returned when a chosen id is not among the options
// currently offered at that level.
var ErrUnknownOption = errors.New("selection: unknown option")

// Fetcher loads the options for a level. *geoorg.Client satisfies it.
type Fetcher interface {
	GeoUnits(ctx context.Context, level models.GeoLevel, parentID string) ([]models.GeoUnit, error)
	OrgUnits(ctx context.Context, kind models.OrgKind, parentID string) ([]models.OrgUnit, error)
}

// Selector holds one session's State and runs the fetches its transitions
// issue. Fetches run without the lock held; their results go back through
// Reduce so late or superseded responses are dropped.
type Selector struct {
	mu    sync.Mutex
	state State
	fetch Fetcher
	log   *zap.Logger
}

func NewSelector(f Fetcher, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{fetch: f, log: logger}
}

// State returns a snapshot.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies e and returns the resulting snapshot.
func (s *Selector) Dispatch(e Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, e)
	return s.state
}

// dispatchPending applies e and returns the fetches it issued.
func (s *Selector) dispatchPending(e Event) []Fetch {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.state.Seq
	s.state = Reduce(s.state, e)
	return Pending(s.state, before)
}

// LoadRoots loads the state list unless it is already loaded.
func (s *Selector) LoadRoots(ctx context.Context) (State, error) {
	if lv := s.State().Geo[models.LevelState]; lv.Loaded {
		return s.State(), nil
	}
	return s.Refresh(ctx, GeoSlot(models.LevelState))
}

// Refresh reloads the options at slot for the current parent.
func (s *Selector) Refresh(ctx context.Context, slot Slot) (State, error) {
	if !slot.Valid() {
		return s.State(), fmt.Errorf("selection: invalid level %d", slot.Level)
	}
	cur := s.State()
	if slot != GeoSlot(models.LevelState) && cur.ParentOf(slot) == "" {
		return cur, nil
	}
	return s.run(ctx, s.dispatchPending(BeginLoad{Slot: slot}))
}

// Choose selects id at slot (empty id clears it) and loads the options the
// change makes available. The id must be one of the options offered at slot.
func (s *Selector) Choose(ctx context.Context, slot Slot, id string) (State, error) {
	if !slot.Valid() {
		return s.State(), fmt.Errorf("selection: invalid level %d", slot.Level)
	}
	s.mu.Lock()
	if id != "" && !s.state.Level(slot).Has(id) {
		st := s.state
		s.mu.Unlock()
		return st, fmt.Errorf("%w: %s %q", ErrUnknownOption, slot.Name(), id)
	}
	before := s.state.Seq
	s.state = Reduce(s.state, Choose{Slot: slot, ID: id})
	fetches := Pending(s.state, before)
	s.mu.Unlock()
	return s.run(ctx, fetches)
}

// run performs fetches concurrently and feeds each result back. A failed
// fetch does not cancel its siblings.
func (s *Selector) run(ctx context.Context, fetches []Fetch) (State, error) {
	var g errgroup.Group
	for _, f := range fetches {
		g.Go(func() error {
			opts, err := s.load(ctx, f)
			ev := Loaded{Slot: f.Slot, Parent: f.Parent, Ticket: f.Ticket, Options: opts}
			if err != nil {
				ev.Err = chipapi.UserMessage(err, "Could not load "+f.Slot.Name()+" options.")
				s.log.Warn("selector fetch failed",
					zap.String("chain", f.Slot.Chain.String()),
					zap.String("level", f.Slot.Name()),
					zap.String("parent", f.Parent),
					zap.Error(err))
			}
			s.Dispatch(ev)
			return err
		})
	}
	err := g.Wait()
	return s.State(), err
}

func (s *Selector) load(ctx context.Context, f Fetch) ([]Option, error) {
	if s.fetch == nil {
		return nil, errors.New("selection: no fetcher configured")
	}
	if f.Slot.Chain == ChainOrg {
		units, err := s.fetch.OrgUnits(ctx, models.OrgKind(f.Slot.Level), f.Parent)
		if err != nil {
			return nil, err
		}
		out := make([]Option, 0, len(units))
		for _, u := range units {
			out = append(out, Option{ID: u.ID, Name: u.Name})
		}
		return out, nil
	}
	units, err := s.fetch.GeoUnits(ctx, models.GeoLevel(f.Slot.Level), f.Parent)
	if err != nil {
		return nil, err
	}
	out := make([]Option, 0, len(units))
	for _, u := range units {
		out = append(out, Option{ID: u.ID, Name: u.Name})
	}
	return out, nil
}

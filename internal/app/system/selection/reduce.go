// internal/app/system/selection/reduce.go
package selection

import "github.com/dalemusser/chipdash/internal/domain/models"

// Event is an input to Reduce.
type Event interface{ isEvent() }

// Choose selects id at Slot (empty id deselects). Every level below Slot in
// the same chain is cleared and any fetch in flight for them is invalidated.
// A fetch ticket is issued for the next level. Choosing a state also clears
// the org chain and issues a ticket for the org types of that state.
type Choose struct {
	Slot Slot
	ID   string
}

// BeginLoad issues a fresh ticket for Slot's options, invalidating any
// earlier fetch for the same slot.
type BeginLoad struct {
	Slot Slot
}

// Loaded delivers the result of a fetch. It is applied only when Ticket is
// still the slot's outstanding ticket and Parent still matches the selection.
type Loaded struct {
	Slot    Slot
	Parent  string
	Ticket  uint64
	Options []Option
	Err     string
}

// Clear returns to the initial state.
type Clear struct{}

func (Choose) isEvent()    {}
func (BeginLoad) isEvent() {}
func (Loaded) isEvent()    {}
func (Clear) isEvent()     {}

// Reduce applies e to s and returns the next state. It never mutates s.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case Choose:
		return choose(s, e)
	case BeginLoad:
		if !e.Slot.Valid() {
			return s
		}
		s.Seq++
		lv := s.level(e.Slot)
		lv.Ticket = s.Seq
		lv.Err = ""
		return s
	case Loaded:
		return loaded(s, e)
	case Clear:
		return State{Seq: s.Seq}
	}
	return s
}

func choose(s State, e Choose) State {
	if !e.Slot.Valid() {
		return s
	}
	s.level(e.Slot).Selected = e.ID
	for l := e.Slot.Level + 1; l < e.Slot.Chain.depth(); l++ {
		*s.level(Slot{Chain: e.Slot.Chain, Level: l}) = Level{}
	}

	if next := (Slot{Chain: e.Slot.Chain, Level: e.Slot.Level + 1}); next.Valid() && e.ID != "" {
		s.Seq++
		s.level(next).Ticket = s.Seq
	}

	// Org types are keyed by state, so a new state resets the whole org chain.
	if e.Slot == GeoSlot(models.LevelState) {
		s.Org = [len(s.Org)]Level{}
		if e.ID != "" {
			s.Seq++
			s.level(OrgSlot(models.KindOrgType)).Ticket = s.Seq
		}
	}
	return s
}

func loaded(s State, e Loaded) State {
	if !e.Slot.Valid() || e.Ticket == 0 {
		return s
	}
	lv := s.Level(e.Slot)
	if lv.Ticket != e.Ticket || s.ParentOf(e.Slot) != e.Parent {
		return s
	}
	next := s.level(e.Slot)
	next.Ticket = 0
	if e.Err != "" {
		next.Err = e.Err
		next.Loaded = false
		next.Options = nil
		return s
	}
	next.Err = ""
	next.Loaded = true
	next.Options = e.Options
	if next.Options == nil {
		next.Options = []Option{}
	}
	return s
}

// Fetch is a request the caller must perform to fill a slot's options.
type Fetch struct {
	Slot   Slot
	Parent string
	Ticket uint64
}

// Pending lists fetches issued after sequence number since.
func Pending(s State, since uint64) []Fetch {
	var out []Fetch
	for _, c := range []Chain{ChainGeo, ChainOrg} {
		for l := 0; l < c.depth(); l++ {
			slot := Slot{Chain: c, Level: l}
			if t := s.Level(slot).Ticket; t > since {
				out = append(out, Fetch{Slot: slot, Parent: s.ParentOf(slot), Ticket: t})
			}
		}
	}
	return out
}

// internal/app/system/selection/state.go
package selection

import "github.com/dalemusser/chipdash/internal/domain/models"

// Chain identifies one of the two independent drill-down hierarchies.
type Chain int

const (
	ChainGeo Chain = iota
	ChainOrg
)

func (c Chain) String() string {
	if c == ChainOrg {
		return "org"
	}
	return "geo"
}

// depth is the number of levels in each chain.
func (c Chain) depth() int {
	if c == ChainOrg {
		return len(models.OrgKinds)
	}
	return len(models.GeoLevels)
}

// Slot addresses one level of one chain. For ChainGeo, Level is a
// models.GeoLevel; for ChainOrg, a models.OrgKind.
type Slot struct {
	Chain Chain
	Level int
}

// GeoSlot and OrgSlot build Slots from the typed levels.
func GeoSlot(l models.GeoLevel) Slot { return Slot{Chain: ChainGeo, Level: int(l)} }
func OrgSlot(k models.OrgKind) Slot  { return Slot{Chain: ChainOrg, Level: int(k)} }

// Valid reports whether the slot names an existing level.
func (s Slot) Valid() bool {
	return (s.Chain == ChainGeo || s.Chain == ChainOrg) && s.Level >= 0 && s.Level < s.Chain.depth()
}

// Name is the level name used in URLs ("district", "organization", ...).
func (s Slot) Name() string {
	if s.Chain == ChainOrg {
		return models.OrgKind(s.Level).String()
	}
	return models.GeoLevel(s.Level).String()
}

// Option is one choice offered at a level.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Level is the state of one drill-down level.
type Level struct {
	Selected string   `json:"selected"`
	Options  []Option `json:"options"`
	Loaded   bool     `json:"loaded"`
	// Ticket is non-zero while a fetch for Options is outstanding. Only a
	// response carrying the same ticket may fill Options.
	Ticket uint64 `json:"-"`
	Err    string `json:"error,omitempty"`
}

// Loading reports whether options for this level are being fetched.
func (l Level) Loading() bool { return l.Ticket != 0 }

// Has reports whether id is among the offered options.
func (l Level) Has(id string) bool {
	for _, o := range l.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// State is the whole selection: the geography chain and the org chain.
// The zero value is the initial state (nothing selected, nothing loaded).
type State struct {
	Geo [5]Level `json:"geo"`
	Org [3]Level `json:"org"`
	Seq uint64   `json:"-"`
}

// Level returns a copy of the level at slot.
func (s State) Level(slot Slot) Level {
	if !slot.Valid() {
		return Level{}
	}
	if slot.Chain == ChainOrg {
		return s.Org[slot.Level]
	}
	return s.Geo[slot.Level]
}

func (s *State) level(slot Slot) *Level {
	if slot.Chain == ChainOrg {
		return &s.Org[slot.Level]
	}
	return &s.Geo[slot.Level]
}

// ParentOf is the id the options at slot are keyed by. The state list has
// no parent; org types hang off the chosen state.
func (s State) ParentOf(slot Slot) string {
	switch {
	case slot.Chain == ChainGeo && slot.Level == 0:
		return ""
	case slot.Chain == ChainOrg && slot.Level == 0:
		return s.Geo[models.LevelState].Selected
	case slot.Chain == ChainOrg:
		return s.Org[slot.Level-1].Selected
	default:
		return s.Geo[slot.Level-1].Selected
	}
}

func (s State) StateID() string    { return s.Geo[models.LevelState].Selected }
func (s State) DivisionID() string { return s.Geo[models.LevelDivision].Selected }
func (s State) DistrictID() string { return s.Geo[models.LevelDistrict].Selected }
func (s State) BlockID() string    { return s.Geo[models.LevelBlock].Selected }
func (s State) SectorID() string   { return s.Geo[models.LevelSector].Selected }

func (s State) OrgTypeID() string      { return s.Org[models.KindOrgType].Selected }
func (s State) OrganizationID() string { return s.Org[models.KindOrganization].Selected }
func (s State) DesignationID() string  { return s.Org[models.KindDesignation].Selected }

// Deepest returns the deepest selected slot of chain and whether any is selected.
func (s State) Deepest(c Chain) (Slot, bool) {
	for l := c.depth() - 1; l >= 0; l-- {
		slot := Slot{Chain: c, Level: l}
		if s.Level(slot).Selected != "" {
			return slot, true
		}
	}
	return Slot{}, false
}

// internal/domain/models/geography.go
package models

// GeoLevel is a level of the geography chain, ordered from the root.
// State → Division → District → Block → Sector.
type GeoLevel int

const (
	LevelState GeoLevel = iota
	LevelDivision
	LevelDistrict
	LevelBlock
	LevelSector
)

// GeoLevels lists every geography level in parent-to-child order.
var GeoLevels = []GeoLevel{LevelState, LevelDivision, LevelDistrict, LevelBlock, LevelSector}

var geoLevelNames = [...]string{"state", "division", "district", "block", "sector"}

// String returns the lower-case name used in URLs and form fields.
func (l GeoLevel) String() string {
	if l < LevelState || l > LevelSector {
		return "unknown"
	}
	return geoLevelNames[l]
}

// Valid reports whether l is one of the five geography levels.
func (l GeoLevel) Valid() bool {
	return l >= LevelState && l <= LevelSector
}

// ParseGeoLevel maps a level name ("state", "division", ...) to its GeoLevel.
func ParseGeoLevel(s string) (GeoLevel, bool) {
	for i, n := range geoLevelNames {
		if n == s {
			return GeoLevel(i), true
		}
	}
	return 0, false
}

// GeoUnit is one administrative unit returned by the CHIP backend.
// Every unit except a State references exactly one parent one level up.
type GeoUnit struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parentId,omitempty"` // empty for states
	Level    GeoLevel `json:"level"`
}

// internal/app/system/paging/paging.go
package paging

import (
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PageSize is the default number of rows shown in paged lists.
const PageSize = 50

// LimitPlusOne returns PageSize+1 as int64 for look-ahead pagination
// (fetch one extra document to detect another page).
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// Result holds the output of TrimPage.
type Result struct {
	HasPrev bool // newer rows exist
	HasNext bool // older rows exist
}

// TrimPage trims a fetched slice of up to PageSize+1 rows in place.
//
// When going back toward newer rows (before != ""), the extra row sits at the
// front after Reverse and HasNext is always true. Otherwise the extra row is
// at the end, and HasPrev is true only when an after cursor was used.
func TrimPage[T any](rows *[]T, before, after string) Result {
	orig := len(*rows)
	var res Result
	if before != "" {
		if orig > PageSize {
			*rows = (*rows)[1:]
			res.HasPrev = true
		}
		res.HasNext = true
		return res
	}
	if orig > PageSize {
		*rows = (*rows)[:PageSize]
		res.HasNext = true
	}
	res.HasPrev = after != ""
	return res
}

// Direction is the walk direction through a newest-first list.
type Direction int

const (
	Older Direction = iota // default; descending sort, "after" cursor
	Newer                  // ascending sort, "before" cursor
)

// Cursor marks a row in a list ordered by a timestamp and then _id.
type Cursor struct {
	At time.Time
	ID primitive.ObjectID
}

// EncodeCursor returns the opaque token for a row.
func EncodeCursor(at time.Time, id primitive.ObjectID) string {
	return wafflemongo.EncodeCursor(at.UTC().Format(time.RFC3339Nano), id)
}

// DecodeCursor parses a token from EncodeCursor.
func DecodeCursor(s string) (Cursor, bool) {
	c, ok := wafflemongo.DecodeCursor(s)
	if !ok {
		return Cursor{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, c.CI)
	if err != nil {
		return Cursor{}, false
	}
	return Cursor{At: at, ID: c.ID}, true
}

// KeysetConfig describes one page request.
type KeysetConfig struct {
	Direction Direction
	Cursor    *Cursor
}

// ConfigureKeyset determines the direction and decodes the cursor. before
// takes precedence over after; an undecodable cursor yields the first page.
func ConfigureKeyset(before, after string) KeysetConfig {
	if before != "" {
		cfg := KeysetConfig{Direction: Newer}
		if c, ok := DecodeCursor(before); ok {
			cfg.Cursor = &c
		}
		return cfg
	}
	cfg := KeysetConfig{Direction: Older}
	if after != "" {
		if c, ok := DecodeCursor(after); ok {
			cfg.Cursor = &c
		}
	}
	return cfg
}

// Sort returns the sort document for field with _id as tie breaker.
func (cfg KeysetConfig) Sort(field string) bson.D {
	order := -1
	if cfg.Direction == Newer {
		order = 1
	}
	return bson.D{{Key: field, Value: order}, {Key: "_id", Value: order}}
}

// Window returns the cursor condition for the query filter, or nil when no
// cursor is set.
func (cfg KeysetConfig) Window(field string) bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	op := "$lt"
	if cfg.Direction == Newer {
		op = "$gt"
	}
	return bson.M{"$or": []bson.M{
		{field: bson.M{op: cfg.Cursor.At}},
		{field: cfg.Cursor.At, "_id": bson.M{op: cfg.Cursor.ID}},
	}}
}

// Reverse reverses a slice in place. Use it after fetching a Newer page to
// restore newest-first order.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// BuildCursors returns the tokens for the first and last rows.
func BuildCursors[T any](rows []T, atFn func(T) time.Time, idFn func(T) primitive.ObjectID) (prev, next string) {
	if len(rows) == 0 {
		return "", ""
	}
	first, last := rows[0], rows[len(rows)-1]
	return EncodeCursor(atFn(first), idFn(first)), EncodeCursor(atFn(last), idFn(last))
}

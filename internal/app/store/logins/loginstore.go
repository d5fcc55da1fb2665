// internal/app/store/logins/loginstore.go
package loginstore

// Terminology: User Identifiers
//   - UserID / userID / user_id: The CHIP backend's identifier for a user
//   - LoginID / loginID / login_id: The email or mobile number typed at login

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/chipdash/internal/app/system/paging"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "login_records"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the indexes used by the recent-activity queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{
			{Key: "login_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "event", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	})
	return err
}

// Create inserts a LoginRecord. If CreatedAt is zero, it's set to time.Now().UTC().
func (s *Store) Create(ctx context.Context, rec models.LoginRecord) error {
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.LoginID = strings.ToLower(strings.TrimSpace(rec.LoginID))
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// PreviousSignIn returns the newest successful sign in for userID older
// than before. ok is false when there is none.
func (s *Store) PreviousSignIn(ctx context.Context, userID string, before time.Time) (rec models.LoginRecord, ok bool, err error) {
	filter := bson.M{
		"user_id":    userID,
		"event":      models.LoginEventSignIn,
		"success":    true,
		"created_at": bson.M{"$lt": before},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	err = s.c.FindOne(ctx, filter, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.LoginRecord{}, false, nil
	}
	if err != nil {
		return models.LoginRecord{}, false, err
	}
	return rec, true, nil
}

// CountFailuresSince counts failed records for loginID since t.
func (s *Store) CountFailuresSince(ctx context.Context, loginID string, t time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"login_id":   strings.ToLower(strings.TrimSpace(loginID)),
		"success":    false,
		"created_at": bson.M{"$gte": t},
	})
}

// ListFilter selects records for List. Empty fields match everything.
type ListFilter struct {
	LoginID string
	Event   string
	Before  string // cursor: page toward newer records
	After   string // cursor: page toward older records
}

// Page is one newest-first page of records.
type Page struct {
	Records []models.LoginRecord
	paging.Result
	PrevCursor string
	NextCursor string
}

// List returns one page of records, newest first, using keyset paging on
// created_at.
func (s *Store) List(ctx context.Context, f ListFilter) (Page, error) {
	filter := bson.M{}
	if id := strings.ToLower(strings.TrimSpace(f.LoginID)); id != "" {
		filter["login_id"] = id
	}
	if f.Event != "" {
		filter["event"] = f.Event
	}

	cfg := paging.ConfigureKeyset(f.Before, f.After)
	if win := cfg.Window("created_at"); win != nil {
		filter = bson.M{"$and": []bson.M{filter, win}}
	}
	opts := options.Find().
		SetSort(cfg.Sort("created_at")).
		SetLimit(paging.LimitPlusOne())

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return Page{}, err
	}
	defer cur.Close(ctx)

	var rows []models.LoginRecord
	if err := cur.All(ctx, &rows); err != nil {
		return Page{}, err
	}
	if cfg.Direction == paging.Newer {
		paging.Reverse(rows)
	}

	page := Page{Result: paging.TrimPage(&rows, f.Before, f.After)}
	page.Records = rows
	page.PrevCursor, page.NextCursor = paging.BuildCursors(rows,
		func(r models.LoginRecord) time.Time { return r.CreatedAt },
		func(r models.LoginRecord) primitive.ObjectID { return r.ID },
	)
	return page, nil
}

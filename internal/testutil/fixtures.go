package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateLoginRecord inserts an audit record as the login store would write it.
func (f *Fixtures) CreateLoginRecord(ctx context.Context, event, loginID, userID string, success bool, at time.Time) models.LoginRecord {
	f.t.Helper()

	rec := models.LoginRecord{
		ID:        primitive.NewObjectID(),
		Event:     event,
		LoginID:   strings.ToLower(loginID),
		UserID:    userID,
		CreatedAt: at.UTC(),
		IP:        "192.0.2.1",
		UserAgent: "fixtures",
		Provider:  "otp",
		Success:   success,
	}

	if _, err := f.db.Collection("login_records").InsertOne(ctx, rec); err != nil {
		f.t.Fatalf("failed to create login record: %v", err)
	}
	return rec
}

// CreateSignIn inserts a successful sign-in for userID at the given time.
func (f *Fixtures) CreateSignIn(ctx context.Context, userID, loginID string, at time.Time) models.LoginRecord {
	f.t.Helper()
	return f.CreateLoginRecord(ctx, models.LoginEventSignIn, loginID, userID, true, at)
}

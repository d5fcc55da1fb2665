package userdir_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/selection"
	"github.com/dalemusser/chipdash/internal/app/system/userdir"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/dalemusser/chipdash/internal/testutil"
	"go.uber.org/zap"
)

func TestList_FiltersByState(t *testing.T) {
	be := testutil.NewBackend(t)
	api, err := chipapi.New(be.URL(), nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	c := userdir.New(api, zap.NewNop())
	ctx := chipapi.WithSession(context.Background(), &chipapi.Session{Token: testutil.BackendToken})

	all, err := c.List(ctx, userdir.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all users = %d, want 3", len(all))
	}

	s1, err := c.List(ctx, userdir.Filter{StateID: "S2"})
	if err != nil {
		t.Fatalf("List S2: %v", err)
	}
	if len(s1) != 1 || s1[0].ID != "U3" {
		t.Errorf("S2 users = %+v", s1)
	}
}

func TestList_RequiresToken(t *testing.T) {
	be := testutil.NewBackend(t)
	api, _ := chipapi.New(be.URL(), nil, zap.NewNop())
	c := userdir.New(api, zap.NewNop())

	_, err := c.List(context.Background(), userdir.Filter{})
	var he *chipapi.HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusUnauthorized || he.Message != "Session expired" {
		t.Errorf("err = %v", err)
	}
}

func TestList_SchemaViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"No Id"}]`))
	}))
	defer srv.Close()
	api, _ := chipapi.New(srv.URL, nil, zap.NewNop())

	_, err := userdir.New(api, zap.NewNop()).List(context.Background(), userdir.Filter{})
	if !errors.Is(err, chipapi.ErrBadResponse) {
		t.Errorf("err = %v, want ErrBadResponse", err)
	}
}

func TestFilterFrom(t *testing.T) {
	var s selection.State
	s = selection.Reduce(s, selection.Choose{Slot: selection.GeoSlot(models.LevelState), ID: "S1"})
	s = selection.Reduce(s, selection.Choose{Slot: selection.GeoSlot(models.LevelDivision), ID: "DV1"})
	s = selection.Reduce(s, selection.Choose{Slot: selection.OrgSlot(models.KindOrgType), ID: "OT1"})

	q := userdir.FilterFrom(s).Query()
	want := map[string]string{"stateId": "S1", "divisionId": "DV1", "orgTypeId": "OT1"}
	if len(q) != len(want) {
		t.Errorf("query = %v", q)
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
}

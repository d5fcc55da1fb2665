package selection_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/geoorg"
	"github.com/dalemusser/chipdash/internal/app/system/selection"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/dalemusser/chipdash/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// gatedFetcher answers from a fixed table. Requests whose parent appears in
// gates block until the gate channel is closed.
type gatedFetcher struct {
	mu      sync.Mutex
	geo     map[string][]models.GeoUnit
	org     map[string][]models.OrgUnit
	gates   map[string]chan struct{}
	started chan string
	fail    error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		geo: map[string][]models.GeoUnit{
			"state|":     {{ID: "S1", Name: "Karnataka"}, {ID: "S2", Name: "Kerala"}},
			"division|S1": {{ID: "DV1", Name: "Bengaluru"}},
			"division|S2": {{ID: "DV3", Name: "Central Kerala"}},
		},
		org: map[string][]models.OrgUnit{
			"orgtype|S1": {{ID: "OT1", Name: "Anganwadi"}},
			"orgtype|S2": {{ID: "OT3", Name: "PHC"}},
		},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
	}
}

func (f *gatedFetcher) gate(parent string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[parent] = ch
	return ch
}

func (f *gatedFetcher) wait(ctx context.Context, key, parent string) error {
	f.mu.Lock()
	ch := f.gates[parent]
	err := f.fail
	f.mu.Unlock()
	f.started <- key
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *gatedFetcher) GeoUnits(ctx context.Context, level models.GeoLevel, parentID string) ([]models.GeoUnit, error) {
	key := level.String() + "|" + parentID
	if err := f.wait(ctx, key, parentID); err != nil {
		return nil, err
	}
	return f.geo[key], nil
}

func (f *gatedFetcher) OrgUnits(ctx context.Context, kind models.OrgKind, parentID string) ([]models.OrgUnit, error) {
	key := kind.String() + "|" + parentID
	if err := f.wait(ctx, key, parentID); err != nil {
		return nil, err
	}
	return f.org[key], nil
}

func TestSelector_LoadRoots(t *testing.T) {
	f := newGatedFetcher()
	sel := selection.NewSelector(f, zap.NewNop())

	st, err := sel.LoadRoots(context.Background())
	if err != nil {
		t.Fatalf("LoadRoots: %v", err)
	}
	states := st.Geo[models.LevelState]
	if !states.Loaded || len(states.Options) != 2 {
		t.Fatalf("states = %+v", states)
	}

	// Already loaded: no second fetch.
	if _, err := sel.LoadRoots(context.Background()); err != nil {
		t.Fatalf("LoadRoots again: %v", err)
	}
	if n := len(f.started); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestSelector_ChooseLoadsNextLevelAndOrgTypes(t *testing.T) {
	sel := selection.NewSelector(newGatedFetcher(), zap.NewNop())
	ctx := context.Background()
	if _, err := sel.LoadRoots(ctx); err != nil {
		t.Fatal(err)
	}

	st, err := sel.Choose(ctx, selection.GeoSlot(models.LevelState), "S1")
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if !st.Geo[models.LevelDivision].Has("DV1") {
		t.Errorf("divisions = %+v", st.Geo[models.LevelDivision])
	}
	if !st.Org[models.KindOrgType].Has("OT1") {
		t.Errorf("org types = %+v", st.Org[models.KindOrgType])
	}
}

func TestSelector_ChooseRejectsUnknownOption(t *testing.T) {
	sel := selection.NewSelector(newGatedFetcher(), zap.NewNop())
	ctx := context.Background()
	if _, err := sel.LoadRoots(ctx); err != nil {
		t.Fatal(err)
	}

	st, err := sel.Choose(ctx, selection.GeoSlot(models.LevelState), "S9")
	if !errors.Is(err, selection.ErrUnknownOption) {
		t.Fatalf("err = %v, want ErrUnknownOption", err)
	}
	if st.StateID() != "" {
		t.Errorf("state changed to %q", st.StateID())
	}

	// Deeper levels have no options until their parent is chosen.
	if _, err := sel.Choose(ctx, selection.GeoSlot(models.LevelDistrict), "D1"); !errors.Is(err, selection.ErrUnknownOption) {
		t.Errorf("district without division: err = %v", err)
	}
}

func TestSelector_StaleResponseDiscarded(t *testing.T) {
	f := newGatedFetcher()
	sel := selection.NewSelector(f, zap.NewNop())
	ctx := context.Background()
	if _, err := sel.LoadRoots(ctx); err != nil {
		t.Fatal(err)
	}
	<-f.started

	release := f.gate("S1")

	done := make(chan error, 1)
	go func() {
		_, err := sel.Choose(ctx, selection.GeoSlot(models.LevelState), "S1")
		done <- err
	}()

	// Both S1 fetches (divisions and org types) are now blocked.
	for i := 0; i < 2; i++ {
		select {
		case <-f.started:
		case <-time.After(2 * time.Second):
			t.Fatal("S1 fetch never started")
		}
	}

	st, err := sel.Choose(ctx, selection.GeoSlot(models.LevelState), "S2")
	if err != nil {
		t.Fatalf("Choose S2: %v", err)
	}
	if !st.Geo[models.LevelDivision].Has("DV3") {
		t.Fatalf("S2 divisions not applied: %+v", st.Geo[models.LevelDivision])
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Choose S1: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("S1 choose never returned")
	}

	final := sel.State()
	if final.StateID() != "S2" {
		t.Errorf("state = %q, want S2", final.StateID())
	}
	if final.Geo[models.LevelDivision].Has("DV1") || !final.Geo[models.LevelDivision].Has("DV3") {
		t.Errorf("stale S1 divisions leaked: %+v", final.Geo[models.LevelDivision])
	}
	if final.Org[models.KindOrgType].Has("OT1") || !final.Org[models.KindOrgType].Has("OT3") {
		t.Errorf("stale S1 org types leaked: %+v", final.Org[models.KindOrgType])
	}
}

func TestSelector_FetchErrorRecorded(t *testing.T) {
	f := newGatedFetcher()
	f.fail = &chipapi.NetworkError{Method: "GET", URL: "http://chip/states", Err: errors.New("refused")}
	sel := selection.NewSelector(f, zap.NewNop())

	st, err := sel.LoadRoots(context.Background())
	var ne *chipapi.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	lv := st.Geo[models.LevelState]
	if lv.Err != "The CHIP service could not be reached. Please try again." {
		t.Errorf("level error = %q", lv.Err)
	}
	if lv.Loading() {
		t.Error("ticket should be consumed")
	}
}

func TestSelector_AgainstFakeBackend(t *testing.T) {
	be := testutil.NewBackend(t)
	api, err := chipapi.New(be.URL(), nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	sel := selection.NewSelector(geoorg.New(api, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	if _, err := sel.LoadRoots(ctx); err != nil {
		t.Fatalf("LoadRoots: %v", err)
	}
	steps := []struct {
		slot selection.Slot
		id   string
	}{
		{selection.GeoSlot(models.LevelState), "S1"},
		{selection.GeoSlot(models.LevelDivision), "DV1"},
		{selection.GeoSlot(models.LevelDistrict), "D1"},
		{selection.GeoSlot(models.LevelBlock), "B1"},
		{selection.GeoSlot(models.LevelSector), "SC1"},
		{selection.OrgSlot(models.KindOrgType), "OT1"},
		{selection.OrgSlot(models.KindOrganization), "O1"},
		{selection.OrgSlot(models.KindDesignation), "DG1"},
	}
	for _, s := range steps {
		if _, err := sel.Choose(ctx, s.slot, s.id); err != nil {
			t.Fatalf("Choose %s=%s: %v", s.slot.Name(), s.id, err)
		}
	}
	st := sel.State()
	if st.SectorID() != "SC1" || st.DesignationID() != "DG1" {
		t.Errorf("final state = %+v", st)
	}
}

func TestSelector_StateChangeDropsOrgSelection(t *testing.T) {
	be := testutil.NewBackend(t)
	api, err := chipapi.New(be.URL(), nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	sel := selection.NewSelector(geoorg.New(api, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	if _, err := sel.LoadRoots(ctx); err != nil {
		t.Fatalf("LoadRoots: %v", err)
	}
	for _, step := range []struct {
		slot selection.Slot
		id   string
	}{
		{selection.GeoSlot(models.LevelState), "S1"},
		{selection.OrgSlot(models.KindOrgType), "OT1"},
		{selection.GeoSlot(models.LevelState), "S2"},
	} {
		if _, err := sel.Choose(ctx, step.slot, step.id); err != nil {
			t.Fatalf("Choose %s=%s: %v", step.slot.Name(), step.id, err)
		}
	}

	st := sel.State()
	if st.StateID() != "S2" || st.OrgTypeID() != "" || st.OrganizationID() != "" {
		t.Errorf("state/orgType/organization = %q/%q/%q", st.StateID(), st.OrgTypeID(), st.OrganizationID())
	}
	want := []selection.Option{{ID: "OT3", Name: "Government"}}
	if diff := cmp.Diff(want, st.Org[models.KindOrgType].Options); diff != "" {
		t.Errorf("org types for S2 (-want +got):\n%s", diff)
	}
	if n := len(st.Org[models.KindOrganization].Options); n != 0 {
		t.Errorf("organization options survived: %d", n)
	}
}

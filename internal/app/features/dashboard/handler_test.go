package dashboard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/chipdash/internal/app/features/dashboard"
	_ "github.com/dalemusser/chipdash/internal/app/features/dashboard/views"
	uierrors "github.com/dalemusser/chipdash/internal/app/features/errors"
	loginstore "github.com/dalemusser/chipdash/internal/app/store/logins"
	"github.com/dalemusser/chipdash/internal/app/system/auth"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/geoorg"
	"github.com/dalemusser/chipdash/internal/app/system/selection"
	"github.com/dalemusser/chipdash/internal/app/system/sessionstate"
	"github.com/dalemusser/chipdash/internal/app/system/userdir"
	"github.com/dalemusser/chipdash/internal/domain/models"
	"github.com/dalemusser/chipdash/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

type harness struct {
	t       *testing.T
	backend *testutil.Backend
	sm      *auth.SessionManager
	router  http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithLogins(t, nil)
}

func newHarnessWithLogins(t *testing.T, logins *loginstore.Store) *harness {
	t.Helper()
	testutil.BootTemplates(t)

	b := testutil.NewBackend(t)
	api, err := chipapi.New(b.URL(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("chipapi.New: %v", err)
	}
	geo := geoorg.New(api, zap.NewNop())

	reg := sessionstate.NewRegistry(sessionstate.Options{
		SweepEvery:  -1,
		NewSelector: func() *selection.Selector { return selection.NewSelector(geo, zap.NewNop()) },
	}, zap.NewNop())
	t.Cleanup(reg.Close)
	sm, err := auth.NewSessionManager(auth.SessionConfig{Key: strings.Repeat("k", 32)}, reg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	h := dashboard.NewHandler(userdir.New(api, zap.NewNop()), logins, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())

	r := chi.NewRouter()
	r.Use(sm.LoadSessionUser)
	r.Mount("/dashboard", dashboard.Routes(h, sm))
	r.Mount("/selector", dashboard.SelectorRoutes(h, sm))
	return &harness{t: t, backend: b, sm: sm, router: r}
}

// signIn creates signed-in session state and returns its cookies.
func (h *harness) signIn(token string) (*httptest.ResponseRecorder, *sessionstate.Entry) {
	h.t.Helper()
	rec := httptest.NewRecorder()
	e, err := h.sm.Entry(rec, httptest.NewRequest("GET", "/login", nil))
	if err != nil {
		h.t.Fatalf("Entry: %v", err)
	}
	_ = e.Update(func(d *sessionstate.Data) error {
		d.User = &models.ChipUser{ID: "U1", Name: "Asha Rao", Role: "admin"}
		d.Token = token
		d.SignedInAt = time.Now()
		return nil
	})
	return rec, e
}

func (h *harness) do(req *http.Request, cookies *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	h.t.Helper()
	if cookies != nil {
		req = testutil.WithCookies(req, cookies)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func choose(path, id string) *http.Request {
	return testutil.NewFormRequest(http.MethodPost, path, url.Values{"id": {id}})
}

func TestServeDashboard_RequiresSignIn(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.Header.Set("Accept", "text/html")
	rec := h.do(req, nil)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?return=%2Fdashboard" {
		t.Errorf("Location: got %q", loc)
	}
}

func TestServeDashboard_LoadsStatesAndUsers(t *testing.T) {
	h := newHarness(t)
	cookies, e := h.signIn(testutil.BackendToken)

	rec := h.do(httptest.NewRequest("GET", "/dashboard", nil), cookies)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if n := h.backend.Calls("/states"); n != 1 {
		t.Errorf("/states calls: got %d, want 1", n)
	}
	if n := h.backend.Calls("/users"); n != 1 {
		t.Errorf("/users calls: got %d, want 1", n)
	}
	if !e.Selector.State().Geo[models.LevelState].Loaded {
		t.Error("state list not loaded into the selector")
	}
	body := rec.Body.String()
	for _, want := range []string{"Karnataka", "Asha Rao", "Latha P"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	// The state list is not refetched on the next visit.
	h.do(httptest.NewRequest("GET", "/dashboard", nil), cookies)
	if n := h.backend.Calls("/states"); n != 1 {
		t.Errorf("/states calls after reload: got %d, want 1", n)
	}
}

func TestServeDashboard_ShowsLastSignInAndFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	h := newHarnessWithLogins(t, store)
	cookies, e := h.signIn(testutil.BackendToken)
	now := e.Snapshot().SignedInAt.UTC()

	recs := []models.LoginRecord{
		{Event: models.LoginEventSignIn, LoginID: testutil.BackendUsername, UserID: "U1", Success: true, CreatedAt: now.Add(-2 * time.Hour)},
		{Event: models.LoginEventPassword, LoginID: testutil.BackendUsername, CreatedAt: now.Add(-time.Hour)},
		{Event: models.LoginEventOTPFailed, LoginID: testutil.BackendUsername, CreatedAt: now.Add(-30 * time.Minute)},
		{Event: models.LoginEventPassword, LoginID: testutil.BackendUsername, CreatedAt: now.Add(-3 * time.Hour)},
	}
	for _, r := range recs {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	rec := h.do(httptest.NewRequest("GET", "/dashboard", nil), cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Last signed in") {
		t.Error("previous sign in not shown")
	}
	if !strings.Contains(body, "2 failed sign in attempts since then.") {
		t.Error("failure count since previous sign in not shown")
	}
}

func TestServeDashboard_UsersFilteredBySelection(t *testing.T) {
	h := newHarness(t)
	cookies, _ := h.signIn(testutil.BackendToken)
	h.do(httptest.NewRequest("GET", "/dashboard", nil), cookies)

	if rec := h.do(choose("/selector/geo/state", "S2"), cookies); rec.Code != http.StatusOK {
		t.Fatalf("choose state: got %d", rec.Code)
	}

	body := h.do(httptest.NewRequest("GET", "/dashboard", nil), cookies).Body.String()
	if !strings.Contains(body, "Latha P") {
		t.Error("S2 user missing")
	}
	if strings.Contains(body, "Meena K") {
		t.Error("S1 user shown for S2 selection")
	}
}

func TestServeDashboard_BackendRejectsToken(t *testing.T) {
	h := newHarness(t)
	cookies, _ := h.signIn("expired")

	rec := h.do(httptest.NewRequest("GET", "/dashboard", nil), cookies)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Session expired") {
		t.Error("backend message not shown")
	}
}

func TestHandleChoose_ClearsDeeperLevels(t *testing.T) {
	h := newHarness(t)
	cookies, e := h.signIn(testutil.BackendToken)
	h.do(httptest.NewRequest("GET", "/dashboard", nil), cookies)

	steps := []struct{ path, id string }{
		{"/selector/geo/state", "S1"},
		{"/selector/geo/division", "DV1"},
		{"/selector/geo/district", "D1"},
		{"/selector/geo/block", "B1"},
	}
	for _, s := range steps {
		if rec := h.do(choose(s.path, s.id), cookies); rec.Code != http.StatusOK {
			t.Fatalf("POST %s: got %d", s.path, rec.Code)
		}
	}
	st := e.Selector.State()
	if st.BlockID() != "B1" || len(st.Geo[models.LevelSector].Options) != 2 {
		t.Fatalf("chain not loaded: %+v", st.Geo)
	}

	h.do(choose("/selector/geo/division", "DV2"), cookies)

	st = e.Selector.State()
	got := []string{st.StateID(), st.DivisionID(), st.DistrictID(), st.BlockID(), st.SectorID()}
	if diff := cmp.Diff([]string{"S1", "DV2", "", "", ""}, got); diff != "" {
		t.Errorf("selection after changing division (-want +got):\n%s", diff)
	}
	if opts := st.Geo[models.LevelDistrict].Options; len(opts) != 1 || opts[0].ID != "D3" {
		t.Errorf("district options: got %+v, want [D3]", opts)
	}
}

func TestHandleChoose_UnknownOption(t *testing.T) {
	h := newHarness(t)
	cookies, _ := h.signIn(testutil.BackendToken)
	h.do(httptest.NewRequest("GET", "/dashboard", nil), cookies)

	rec := h.do(choose("/selector/geo/state", "S9"), cookies)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if n := h.backend.Calls("/divisions"); n != 0 {
		t.Errorf("/divisions calls: got %d, want 0", n)
	}
}

func TestHandleChoose_UnknownLevel(t *testing.T) {
	h := newHarness(t)
	cookies, _ := h.signIn(testutil.BackendToken)

	for _, path := range []string{"/selector/geo/village", "/selector/team/state"} {
		if rec := h.do(choose(path, "x"), cookies); rec.Code != http.StatusNotFound {
			t.Errorf("POST %s: got %d, want 404", path, rec.Code)
		}
	}
}

func TestServeSelector_JSON(t *testing.T) {
	h := newHarness(t)
	cookies, _ := h.signIn(testutil.BackendToken)
	h.do(httptest.NewRequest("GET", "/dashboard", nil), cookies)

	req := choose("/selector/geo/state", "S1")
	req.Header.Set("Accept", "application/json")
	h.do(req, cookies)

	req = httptest.NewRequest("GET", "/selector", nil)
	req.Header.Set("Accept", "application/json")
	rec := h.do(req, cookies)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var got struct {
		Geo []struct {
			Selected string `json:"selected"`
			Options  []struct {
				ID string `json:"id"`
			} `json:"options"`
		} `json:"geo"`
		Org []struct {
			Options []struct {
				ID string `json:"id"`
			} `json:"options"`
		} `json:"org"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Geo[0].Selected != "S1" {
		t.Errorf("state: got %q, want S1", got.Geo[0].Selected)
	}
	if len(got.Geo[1].Options) != 2 {
		t.Errorf("division options: got %d, want 2", len(got.Geo[1].Options))
	}
	if len(got.Org[0].Options) != 2 {
		t.Errorf("org type options: got %d, want 2", len(got.Org[0].Options))
	}
}

func TestSelector_RequiresSignIn(t *testing.T) {
	h := newHarness(t)

	rec := h.do(choose("/selector/geo/state", "S1"), nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

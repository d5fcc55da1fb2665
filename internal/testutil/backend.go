package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// BackendUnit is a list item served by the fake CHIP backend.
type BackendUnit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BackendUser is a user served by GET /users.
type BackendUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Mobile  string `json:"mobile,omitempty"`
	Role    string `json:"role,omitempty"`
	StateID string `json:"stateId,omitempty"`
}

// Fake credentials accepted by the backend.
const (
	BackendUsername = "asha@example.org"
	BackendMobile   = "9123456789"
	BackendOTP      = "123456"
	BackendToken    = "tok-chip-1"
	BackendCookie   = "chip_sid"
)

// Backend is an in-process stand-in for the CHIP REST backend.
//
// List endpoints serve the fixture tree below; unknown parents return [].
// POST /users/login accepts BackendUsername with Password (the value the
// client is expected to transmit, i.e. after hashing).
type Backend struct {
	Server *httptest.Server

	// Password is the transmitted password /users/login accepts.
	Password string

	// RejectMessage is the message a rejected login answers 401 with.
	RejectMessage string

	// Before, when set, runs before every request is answered.
	Before func(r *http.Request)

	mu    sync.Mutex
	calls map[string]int
	lists map[string][]BackendUnit
	users []BackendUser
	last  map[string]map[string]any
}

// NewBackend starts a fake backend that is closed when t finishes.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		Password:      "secret",
		RejectMessage: "Invalid credentials",
		calls:         make(map[string]int),
		last:          make(map[string]map[string]any),
		lists: map[string][]BackendUnit{
			"/states":                           {{"S1", "Karnataka"}, {"S2", "Kerala"}},
			"/divisions?stateId=S1":             {{"DV1", "Bengaluru"}, {"DV2", "Mysuru"}},
			"/divisions?stateId=S2":             {{"DV3", "North Kerala"}},
			"/districts?divisionId=DV1":         {{"D1", "Bengaluru Urban"}, {"D2", "Ramanagara"}},
			"/districts?divisionId=DV2":         {{"D3", "Mandya"}},
			"/blocks?districtId=D1":             {{"B1", "Anekal"}, {"B2", "Yelahanka"}},
			"/blocks?districtId=D3":             {{"B3", "Maddur"}},
			"/sectors?blockId=B1":               {{"SC1", "Anekal Sector 1"}, {"SC2", "Anekal Sector 2"}},
			"/organizationTypes?stateId=S1":     {{"OT1", "Government"}, {"OT2", "NGO"}},
			"/organizationTypes?stateId=S2":     {{"OT3", "Government"}},
			"/organizations?orgTypeId=OT1":      {{"O1", "Health Department"}, {"O2", "ICDS"}},
			"/designations?organizationId=O1":   {{"DG1", "ASHA Worker"}, {"DG2", "Supervisor"}},
			"/designations?organizationId=O2":   {{"DG3", "Anganwadi Worker"}},
		},
		users: []BackendUser{
			{ID: "U1", Name: "Asha Rao", Email: BackendUsername, Role: "admin", StateID: "S1"},
			{ID: "U2", Name: "Meena K", Mobile: BackendMobile, Role: "worker", StateID: "S1"},
			{ID: "U3", Name: "Latha P", Email: "latha@example.org", Role: "worker", StateID: "S2"},
		},
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.calls[r.URL.Path]++
			before := b.Before
			b.mu.Unlock()
			if before != nil {
				before(r)
			}
			next.ServeHTTP(w, r)
		})
	})

	list := func(path, param string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := path
			if param != "" {
				key += "?" + param + "=" + r.URL.Query().Get(param)
			}
			b.mu.Lock()
			units := b.lists[key]
			b.mu.Unlock()
			if units == nil {
				units = []BackendUnit{}
			}
			writeJSON(w, http.StatusOK, units)
		}
	}
	r.Get("/states", list("/states", ""))
	r.Get("/divisions", list("/divisions", "stateId"))
	r.Get("/districts", list("/districts", "divisionId"))
	r.Get("/blocks", list("/blocks", "districtId"))
	r.Get("/sectors", list("/sectors", "blockId"))
	r.Get("/organizationTypes", list("/organizationTypes", "stateId"))
	r.Get("/organizations", list("/organizations", "orgTypeId"))
	r.Get("/designations", list("/designations", "organizationId"))

	r.Post("/users/login", b.serveLogin)
	r.Post("/users/otp/send", b.serveOTPSend)
	r.Post("/users/otp/verify", b.serveOTPVerify)
	r.Get("/users", b.serveUsers)

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the backend base URL.
func (b *Backend) URL() string { return b.Server.URL }

// Calls returns how many requests reached path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// LastBody returns the last decoded JSON body posted to path.
func (b *Backend) LastBody(path string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last[path]
}

// SetList replaces the units served for key (e.g. "/divisions?stateId=S1").
func (b *Backend) SetList(key string, units []BackendUnit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists[key] = units
}

func (b *Backend) decode(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed request"})
		return nil, false
	}
	b.mu.Lock()
	b.last[r.URL.Path] = body
	b.mu.Unlock()
	return body, true
}

func (b *Backend) loginResult() map[string]any {
	return map[string]any{
		"token": BackendToken,
		"user": map[string]any{
			"id": "U1", "name": "Asha Rao", "email": BackendUsername, "role": "admin",
		},
	}
}

func (b *Backend) serveLogin(w http.ResponseWriter, r *http.Request) {
	body, ok := b.decode(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	want, reject := b.Password, b.RejectMessage
	b.mu.Unlock()
	if body["username"] != BackendUsername || body["password"] != want {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": reject})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: BackendCookie, Value: "sess-1", Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, b.loginResult())
}

func (b *Backend) serveOTPSend(w http.ResponseWriter, r *http.Request) {
	body, ok := b.decode(w, r)
	if !ok {
		return
	}
	if body["username"] != BackendUsername && body["mobile"] != BackendMobile {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No account found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
}

func (b *Backend) serveOTPVerify(w http.ResponseWriter, r *http.Request) {
	body, ok := b.decode(w, r)
	if !ok {
		return
	}
	if body["otp"] != BackendOTP {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid OTP"})
		return
	}
	writeJSON(w, http.StatusOK, b.loginResult())
}

func (b *Backend) serveUsers(w http.ResponseWriter, r *http.Request) {
	if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != BackendToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Session expired"})
		return
	}
	stateID := r.URL.Query().Get("stateId")
	b.mu.Lock()
	out := make([]BackendUser, 0, len(b.users))
	for _, u := range b.users {
		if stateID == "" || u.StateID == stateID {
			out = append(out, u)
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

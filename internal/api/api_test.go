package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/auth"
	"github.com/dennisdiepolder/monti/frontdesk/internal/storage"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/dennisdiepolder/monti/frontdesk/internal/weekly"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

var apiNow = time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

type fakeSource struct {
	dash   types.Dashboard
	calls  []types.CallRecord
	resets int
}

func (f *fakeSource) Latest() types.Dashboard { return f.dash }

func (f *fakeSource) Agent(name string) (types.AgentStat, bool) {
	for _, a := range f.dash.Employees {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return types.AgentStat{}, false
}

func (f *fakeSource) AgentCalls(string) []types.CallRecord { return f.calls }

func (f *fakeSource) Now() time.Time { return apiNow }

func (f *fakeSource) ResetWindow(context.Context) types.Dashboard {
	f.resets++
	return types.Dashboard{State: types.StateEmpty}
}

func newTestRouter(t *testing.T) (http.Handler, *fakeSource, *weekly.Store) {
	t.Helper()
	logger := zerolog.New(&bytes.Buffer{})
	source := &fakeSource{
		dash: types.Dashboard{
			Type:      "dashboard",
			State:     types.StateReady,
			Employees: []types.AgentStat{{Name: "Jane Doe", Inbound: 1, Missed: 1, Outbound: 1}},
			KPI:       types.KPISnapshot{AbandonRate: "10%"},
		},
		calls: []types.CallRecord{
			{ID: "1", AgentName: "Jane Doe", CallType: types.CallTypeInbound, DurationSec: 90, StartTime: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)},
			{ID: "2", AgentName: "Jane Doe", CallType: types.CallTypeInbound, StartTime: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)},
			{ID: "3", AgentName: "Jane Doe", CallType: types.CallTypeOutbound, DurationSec: 30, StartTime: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)},
		},
	}
	store := weekly.NewStore(storage.NewMemoryStore(), weekly.DefaultKeepWeeks, logger)

	dashboard := NewDashboardHandler(source, store, logger)
	admin := NewAdminHandler("", source, store, logger)

	r := chi.NewRouter()
	r.Get("/api/dashboard", dashboard.GetDashboard)
	r.Get("/api/agents/{name}", dashboard.GetAgent)
	r.Get("/api/weekly", dashboard.GetWeekly)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Post("/reset-window", admin.ResetWindow)
		r.Delete("/weekly", admin.WipeWeekly)
		r.Get("/sim/status", admin.GetSimStatus)
	})
	return r, source, store
}

func asUser(req *http.Request, role string) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), &auth.Claims{Email: "u@example.com", Role: role}))
}

func TestGetDashboard(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var dash types.Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &dash); err != nil {
		t.Fatal(err)
	}
	if dash.State != types.StateReady || dash.KPI.AbandonRate != "10%" {
		t.Errorf("unexpected dashboard %+v", dash)
	}
}

func TestGetAgent(t *testing.T) {
	router, _, _ := newTestRouter(t)

	tests := []struct {
		name      string
		path      string
		status    int
		wantCalls int
		wantStats types.AgentStat
	}{
		{"all calls", "/api/agents/Jane%20Doe", http.StatusOK, 3, types.AgentStat{Name: "Jane Doe", Inbound: 1, Missed: 1, Outbound: 1}},
		{"case insensitive", "/api/agents/jane%20doe", http.StatusOK, 3, types.AgentStat{Name: "Jane Doe", Inbound: 1, Missed: 1, Outbound: 1}},
		{"by date", "/api/agents/Jane%20Doe?date=2025-03-04", http.StatusOK, 2, types.AgentStat{Name: "Jane Doe", Missed: 1, Outbound: 1, OutboundHandlingTimeSec: 30}},
		{"day without calls", "/api/agents/Jane%20Doe?date=2025-03-05", http.StatusOK, 0, types.AgentStat{Name: "Jane Doe"}},
		{"bad date", "/api/agents/Jane%20Doe?date=04/03/2025", http.StatusBadRequest, 0, types.AgentStat{}},
		{"unknown", "/api/agents/Nobody", http.StatusNotFound, 0, types.AgentStat{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp agentResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Calls) != tt.wantCalls {
				t.Errorf("calls = %d, want %d", len(resp.Calls), tt.wantCalls)
			}
			if resp.Stats != tt.wantStats {
				t.Errorf("stats = %+v, want %+v", resp.Stats, tt.wantStats)
			}
		})
	}
}

func TestGetWeekly(t *testing.T) {
	router, _, store := newTestRouter(t)
	ctx := context.Background()

	monday := time.Date(2025, 3, 3, 17, 0, 0, 0, time.UTC)
	store.SaveDailyData(ctx, 10, 4, monday)
	store.SaveDailyData(ctx, 6, 2, apiNow)
	store.IncrementWeeklyCallCount(ctx, apiNow, 22)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/weekly", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp weeklyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Week != "2025-W10" {
		t.Errorf("week = %s", resp.Week)
	}
	if resp.WeeklyCallTotal != 22 {
		t.Errorf("weeklyCallTotal = %d, want 22", resp.WeeklyCallTotal)
	}
	if len(resp.Days) != 2 || resp.InboundTotal != 16 || resp.OutboundTotal != 6 {
		t.Errorf("unexpected tallies %+v", resp)
	}
	if len(resp.StoredWeeks) != 1 {
		t.Errorf("storedWeeks = %v", resp.StoredWeeks)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/weekly?date=bad", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAdminRequiresAdminRole(t *testing.T) {
	router, source, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/reset-window", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("anonymous status = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/admin/reset-window", nil), auth.RoleViewer))
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer status = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/api/admin/reset-window", nil), auth.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}
	if source.resets != 1 {
		t.Errorf("resets = %d, want 1", source.resets)
	}
}

func TestAdminWipeWeekly(t *testing.T) {
	router, _, store := newTestRouter(t)
	ctx := context.Background()
	store.IncrementWeeklyCallCount(ctx, apiNow, 5)
	store.SaveDailyData(ctx, 5, 1, apiNow)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/api/admin/weekly", nil), auth.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if store.Counter(ctx).Count != 0 || len(store.Weeks(ctx)) != 0 {
		t.Error("weekly store not wiped")
	}
}

func TestAdminSimProxy(t *testing.T) {
	sim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"running":true}`))
	}))
	defer sim.Close()

	logger := zerolog.New(&bytes.Buffer{})
	admin := NewAdminHandler(sim.URL, &fakeSource{}, nil, logger)

	rec := httptest.NewRecorder()
	admin.GetSimStatus(rec, httptest.NewRequest(http.MethodGet, "/api/admin/sim/status", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"running":true`) {
		t.Errorf("unexpected proxy response %d %s", rec.Code, rec.Body.String())
	}

	router, _, _ := newTestRouter(t)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/admin/sim/status", nil), auth.RoleAdmin))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status without simulator = %d, want 503", rec.Code)
	}
}

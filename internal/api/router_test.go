package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"field-visit-service/internal/adapters/geocode"
	"field-visit-service/internal/adapters/store"
	"field-visit-service/internal/adapters/tracking"
	"field-visit-service/internal/api/dto"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJobs struct {
	jobs []domain.Job
}

func (s stubJobs) ListJobs(context.Context) ([]domain.Job, error) {
	return s.jobs, nil
}

type received struct {
	mu      sync.Mutex
	samples []domain.LocationCoordinates
}

func (r *received) handle(_ context.Context, _ string, s domain.LocationCoordinates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return nil
}

func (r *received) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

type testServer struct {
	handler  http.Handler
	source   *tracking.ChannelSource
	received *received
}

func newTestServer(t *testing.T, relay bool) testServer {
	t.Helper()

	job := domain.Job{
		ID:                "J1",
		ClientName:        "Acme",
		PropertyAddress:   "1 Main St",
		Category:          "maintenance",
		EstimatedDuration: "2 hours",
		ScheduledVisits: []domain.ScheduledVisit{
			{ID: "sv1", Date: "2024-01-15", Time: "09:00", Duration: "1 hour", Purpose: "inspection"},
			{ID: "sv2", Date: "2024-01-15", Time: "14:00", Duration: "2 hours"},
		},
		Technicians: []domain.AssignedTechnician{{ID: "T1", Name: "Tess", IsPrimary: true}},
	}

	svc := services.NewVisitService(services.ServiceDeps{
		Jobs:   stubJobs{jobs: []domain.Job{job}},
		States: store.NewMemoryVisitStateStore(),
		Resolver: geocode.NewStaticResolver(map[string]domain.Coordinates{
			"J1-sv1": {Lat: 33.45, Lon: -112.07},
			"J1-sv2": {Lat: 33.50, Lon: -112.00},
		}),
	})

	ts := testServer{source: tracking.NewChannelSource(), received: &received{}}
	manager := services.NewTrackingManager(ts.source, ts.received.handle, nil)
	t.Cleanup(manager.StopAll)

	deps := RouterDeps{Visits: svc, Tracking: manager}
	if relay {
		deps.Relay = ts.source
	}
	ts.handler = NewRouter(deps)
	return ts
}

func (ts testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))
}

func TestRequestIDIsEchoedOrAssigned(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))

	rec = ts.do(t, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestListAndGetVisits(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/visits?technician_id=T1&date=2024-01-15", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[dto.ListVisitsResponse](t, rec)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "J1-sv1", list.Visits[0].ID)

	rec = ts.do(t, http.MethodGet, "/visits?type=inspection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[dto.ListVisitsResponse](t, rec).Count)

	rec = ts.do(t, http.MethodGet, "/visits?status=sleeping", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/visits/J1-sv2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[domain.Visit](t, rec)
	assert.Equal(t, "16:00", v.EndTime)
	assert.Equal(t, domain.VisitStatusScheduled, v.Status)

	rec = ts.do(t, http.MethodGet, "/visits/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckInAndStatusErrors(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/visits/J1-sv1/check-in", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[domain.Visit](t, rec)
	assert.Equal(t, domain.VisitStatusArrived, v.Status)
	require.NotNil(t, v.Progress)
	assert.Equal(t, 14, v.Progress.CompletionPercentage)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/check-in", `{"technician_id":"T1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/status", `{"status":"scheduled"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/status", `{"status":"sleeping"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/status", `{"status":"completed","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/status", `{"status":"completed"}{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/status", `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.VisitStatusCompleted, decode[domain.Visit](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/visits/missing/check-in", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStageRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/visits/J1-sv1/stages/advance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/stages/nope/skip", `{"reason":"n/a"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/notes", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/notes", `{"text":"gate code 1234","category":"access"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[domain.Visit](t, rec)
	require.NotNil(t, v.Progress)
	require.Len(t, v.Progress.Notes, 1)
	assert.Equal(t, "gate code 1234", v.Progress.Notes[0].Text)
}

func TestTimelineRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/visits/J1-sv1/timeline", `{"type":"issue_reported","description":"Leak under sink"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/timeline", `{"type":"check_in","description":"sneaky"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/visits/J1-sv1/timeline?type=issue_reported", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tl := decode[dto.TimelineResponse](t, rec)
	assert.Equal(t, "J1-sv1", tl.VisitID)
	require.Len(t, tl.Events, 1)
	assert.Equal(t, "Leak under sink", tl.Events[0].Description)

	rec = ts.do(t, http.MethodGet, "/visits/J1-sv1/timeline?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/visits/J1-sv1/status-dwell", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "J1-sv1", decode[dto.StatusDwellResponse](t, rec).VisitID)
}

func TestCheckSlot(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/availability/check",
		`{"date":"2024-01-15","start_time":"09:30","duration_minutes":30,"technician_id":"T1"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	res := decode[dto.SlotCheckResponse](t, rec)
	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "J1-sv1", res.Conflicts[0].VisitID)

	rec = ts.do(t, http.MethodPost, "/availability/check",
		`{"date":"2024-01-15","start_time":"10:00","duration_minutes":60,"technician_id":"T1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dto.SlotCheckResponse](t, rec).Available)

	rec = ts.do(t, http.MethodPost, "/availability/check",
		`{"date":"2024-01-15","start_time":"10:00","duration_minutes":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailableSlots(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/availability/slots?date=2024-01-15&duration=60&technician_id=T1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[dto.SlotsResponse](t, rec)
	assert.Equal(t, "2024-01-15", res.Date)
	assert.Equal(t, 60, res.DurationMinutes)
	assert.Contains(t, res.Slots, "08:00")
	assert.Contains(t, res.Slots, "10:00")
	assert.Contains(t, res.Slots, "16:00")
	assert.NotContains(t, res.Slots, "08:30")
	assert.NotContains(t, res.Slots, "09:00")
	assert.NotContains(t, res.Slots, "15:30")

	rec = ts.do(t, http.MethodGet, "/availability/slots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/availability/slots?date=2024-01-15&duration=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimizeRoute(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/routes/optimize", `{"technician_id":"T1","date":"2024-01-15"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	route := decode[domain.DailyRoute](t, rec)
	assert.Equal(t, []string{"J1-sv1", "J1-sv2"}, route.Result.OrderedVisitIDs)

	rec = ts.do(t, http.MethodGet, "/visits/J1-sv2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[domain.Visit](t, rec)
	require.NotNil(t, v.Route)
	assert.Equal(t, 2, v.Route.Order)
}

func TestLocationUpdateValidation(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/visits/J1-sv1/location", `{"latitude":123,"longitude":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/location", `{"latitude":33.40,"longitude":-112.07}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[domain.Visit](t, rec)
	require.NotNil(t, v.Location)
	require.NotNil(t, v.Location.DistanceKm)

	rec = ts.do(t, http.MethodGet, "/visits/J1-sv1/eta", "")
	require.Equal(t, http.StatusOK, rec.Code)
	eta := decode[services.ETAView](t, rec)
	assert.Equal(t, "J1-sv1", eta.VisitID)
	assert.NotNil(t, eta.DistanceKm)
}

func TestTrackingRelay(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/visits/J1-sv1/positions", `{"latitude":33.4,"longitude":-112.0}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/missing/tracking", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/tracking", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.True(t, decode[dto.TrackingResponse](t, rec).Tracking)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/tracking", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/visits/J1-sv1/positions", `{"latitude":33.4,"longitude":-112.0}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, decode[dto.RelayResponse](t, rec).Delivered)
	assert.Eventually(t, func() bool { return ts.received.count() == 1 }, time.Second, 5*time.Millisecond)

	rec = ts.do(t, http.MethodDelete, "/visits/J1-sv1/tracking", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, ts.source.Subscribers("J1-sv1"))

	rec = ts.do(t, http.MethodDelete, "/visits/J1-sv1/tracking", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPositionRelayDisabled(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/visits/J1-sv1/positions", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

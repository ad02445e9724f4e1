package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careline/scheduling-agent/internal/booking"
	"github.com/careline/scheduling-agent/internal/conversation"
)

func testServer(t *testing.T) (*httptest.Server, *booking.MemoryRepository, *booking.Provider) {
	t.Helper()

	repo := booking.NewMemoryRepository()
	provider := repo.AddProvider(booking.Provider{
		Name:      "Dr. Maria Garcia",
		Specialty: "Family Medicine",
		Location:  "Main Clinic - Room 101",
	})

	day, err := booking.ParseDate("2025-06-03")
	require.NoError(t, err)
	start, err := booking.ParseTimeOfDay("09:00")
	require.NoError(t, err)
	repo.AddSlot(booking.ScheduleSlot{ProviderID: provider.ID, Date: day, Start: start, Available: true})

	engine := conversation.NewEngine(conversation.EngineConfig{
		Sessions:  conversation.NewMemoryStore(),
		Patients:  repo,
		Providers: repo,
		Resolver:  booking.NewResolver(repo),
		Booker:    booking.NewService(repo, repo, nil, nil),
		Now:       func() time.Time { return time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC) },
	})

	router := NewRouter(RouterConfig{
		Engine:    engine,
		Providers: repo,
		Schedule:  repo,
		Env:       "test",
		Version:   "test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo, provider
}

func postTurn(t *testing.T, srv *httptest.Server, sessionID, message string) TurnResponse {
	t.Helper()

	body, err := json.Marshal(TurnRequest{Message: message})
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("%s/sessions/%s/messages", srv.URL, sessionID),
		"application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var turn TurnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turn))
	return turn
}

func TestPostTurn(t *testing.T) {
	srv, _, _ := testServer(t)

	turn := postTurn(t, srv, "abc", "hello")
	assert.Equal(t, "abc", turn.SessionID)
	assert.Contains(t, turn.Reply, "full name")

	turn = postTurn(t, srv, "abc", "Jane Doe")
	assert.Contains(t, turn.Reply, "date of birth", "state persists across requests")
}

func TestPostTurnBadBody(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/sessions/abc/messages", "application/json",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "invalid_request_body", errResp.Error)
}

func TestListProviders(t *testing.T) {
	srv, _, provider := testServer(t)

	resp, err := http.Get(srv.URL + "/providers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var providers []ProviderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&providers))
	require.Len(t, providers, 1)
	assert.Equal(t, provider.ID, providers[0].ID)
	assert.Equal(t, "Dr. Maria Garcia", providers[0].Name)
}

func TestGetAppointment(t *testing.T) {
	srv, repo, provider := testServer(t)

	patient := repo.AddPatient(booking.Patient{Name: "Jane Doe", Email: "jane@example.com"})
	day, err := booking.ParseDate("2025-06-03")
	require.NoError(t, err)
	start, err := booking.ParseTimeOfDay("09:00")
	require.NoError(t, err)

	appt, err := repo.Reserve(context.Background(), booking.Reservation{
		ProviderID: provider.ID, PatientID: patient.ID, Date: day, Start: start, Units: 1,
	})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/appointments/" + appt.ID.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got AppointmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, appt.ID, got.ID)
	assert.Equal(t, "2025-06-03", got.Date)
	assert.Equal(t, "09:00", got.Time)
	assert.Equal(t, 30, got.DurationMinutes)
	assert.Equal(t, "Jane Doe", got.PatientName)
	assert.Equal(t, "Dr. Maria Garcia", got.ProviderName)
	assert.Equal(t, "confirmed", got.Status)
}

func TestGetAppointmentErrors(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/appointments/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/appointments/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthLive(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var live LivenessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&live))
	assert.Equal(t, "ok", live.Status)
	assert.Equal(t, "test", live.Env)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health/live", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "fixed-id")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "fixed-id", resp.Header.Get("X-Request-ID"))
}

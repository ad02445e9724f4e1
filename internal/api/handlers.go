package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careline/scheduling-agent/internal/booking"
)

// TurnProcessor is the conversation engine surface the HTTP layer needs.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID, input string) (string, error)
}

func postTurnHandler(engine TurnProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "session id is required")
			return
		}

		var req TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		reply, err := engine.ProcessTurn(r.Context(), sessionID, req.Message)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not process message")
			return
		}

		writeJSON(w, http.StatusOK, TurnResponse{SessionID: sessionID, Reply: reply})
	}
}

func listProvidersHandler(directory booking.ProviderDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := directory.ListProviders(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not list providers")
			return
		}

		resp := make([]ProviderResponse, 0, len(providers))
		for _, p := range providers {
			resp = append(resp, ProviderResponse{
				ID:        p.ID,
				Name:      p.Name,
				Specialty: p.Specialty,
				Location:  p.Location,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(schedule booking.ScheduleRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := schedule.GetAppointmentDetail(r.Context(), id)
		if err != nil {
			if errors.Is(err, booking.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "could not load appointment")
			return
		}

		resp := AppointmentResponse{
			ID:              detail.ID,
			PatientID:       detail.PatientID,
			ProviderID:      detail.ProviderID,
			Date:            detail.Date.String(),
			Time:            detail.Start.String(),
			DurationMinutes: detail.Duration.Minutes(),
			Location:        detail.Location,
			Status:          string(detail.Status),
			CreatedAt:       detail.CreatedAt,
		}
		if detail.Patient != nil {
			resp.PatientName = detail.Patient.Name
		}
		if detail.Provider != nil {
			resp.ProviderName = detail.Provider.Name
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

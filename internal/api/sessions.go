package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pavkata12/app/internal/ledger"
	"github.com/pavkata12/app/internal/models"
)

type openSessionRequest struct {
	ComputerID int64      `json:"computer_id"`
	TariffID   int64      `json:"tariff_id"`
	StartTime  *time.Time `json:"start_time,omitempty"`
}

type closeSessionRequest struct {
	EndTime *time.Time `json:"end_time,omitempty"`
}

type paymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter ledger.SessionFilter
	var err error
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			writeError(w, r, &ledger.ValidationError{Field: "limit", Reason: fmt.Sprintf("%q is not a number", raw)})
			return
		}
		if filter.Limit < 0 {
			writeError(w, r, &ledger.ValidationError{Field: "limit", Reason: "must not be negative"})
			return
		}
	}

	// status=active returns the joined active view used by the front desk
	if q.Get("status") == string(models.SessionActive) && q.Get("computer_id") == "" {
		sessions, err := h.ledger.ListActiveSessions(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if filter.Limit > 0 && len(sessions) > filter.Limit {
			sessions = sessions[:filter.Limit]
		}
		writeJSON(w, http.StatusOK, sessions)
		return
	}

	if filter.ComputerID, err = queryID(r, "computer_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := q.Get("status"); raw != "" {
		if filter.Status, err = models.ParseSessionStatus(raw); err != nil {
			writeError(w, r, &ledger.ValidationError{Field: "status", Reason: err.Error()})
			return
		}
	}

	sessions, err := h.ledger.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	var start time.Time
	if req.StartTime != nil {
		start = *req.StartTime
	}

	session, err := h.ledger.OpenSession(r.Context(), req.ComputerID, req.TariffID, start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.ledger.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req closeSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	var end time.Time
	if req.EndTime != nil {
		end = *req.EndTime
	}

	session, err := h.ledger.CloseSession(r.Context(), id, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.ledger.CancelSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payments, err := h.ledger.ListPayments(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req paymentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	payment, err := h.ledger.RecordPayment(r.Context(), id, req.Amount, req.PaymentMethod)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (h *Handler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.ledger.PaymentSummary(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

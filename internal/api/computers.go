package api

import (
	"net"
	"net/http"

	"github.com/pavkata12/app/internal/models"
)

type registerComputerRequest struct {
	Name      string `json:"name"`
	IPAddress string `json:"ip_address"`
}

type computerStatusRequest struct {
	Status string `json:"status"`
}

type heartbeatRequest struct {
	IPAddress string `json:"ip_address"`
}

func (h *Handler) ListComputers(w http.ResponseWriter, r *http.Request) {
	computers, err := h.ledger.ListComputers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, computers)
}

func (h *Handler) RegisterComputer(w http.ResponseWriter, r *http.Request) {
	var req registerComputerRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	computer, err := h.ledger.RegisterComputer(r.Context(), req.Name, req.IPAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, computer)
}

func (h *Handler) GetComputer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	computer, err := h.ledger.GetComputer(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, computer)
}

func (h *Handler) UpdateComputerStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req computerStatusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	computer, err := h.ledger.UpdateComputerStatus(r.Context(), id, models.ComputerStatus(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, computer)
}

// Heartbeat marks a station as seen. Stations that omit ip_address are identified
// by the address they connect from.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IPAddress == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			req.IPAddress = host
		}
	}

	computer, err := h.ledger.Heartbeat(r.Context(), req.IPAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, computer)
}

func (h *Handler) GetActiveSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.ledger.GetActiveSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) ComputerUsageReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	days, err := h.ledger.ComputerUsageReport(r.Context(), id, q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

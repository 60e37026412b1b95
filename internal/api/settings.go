package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

type settingRequest struct {
	Value string `json:"value"`
}

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.ledger.ListSettings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := h.ledger.GetSetting(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (h *Handler) SetSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	setting, err := h.ledger.SetSetting(r.Context(), mux.Vars(r)["key"], req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.DailyReport(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

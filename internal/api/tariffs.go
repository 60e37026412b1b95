package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pavkata12/app/internal/ledger"
	"github.com/pavkata12/app/internal/models"
)

type tariffRequest struct {
	Name         string          `json:"name"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
	Description  string          `json:"description"`
}

func (req tariffRequest) input() ledger.TariffInput {
	return ledger.TariffInput{
		Name:         req.Name,
		PricePerHour: req.PricePerHour,
		Description:  req.Description,
	}
}

func (h *Handler) ListTariffs(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	tariffs, err := h.ledger.ListTariffs(r.Context(), includeInactive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tariffs)
}

func (h *Handler) CreateTariff(w http.ResponseWriter, r *http.Request) {
	var req tariffRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	tariff, err := h.ledger.CreateTariff(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tariff)
}

func (h *Handler) GetTariff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tariff, err := h.ledger.GetTariff(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tariff)
}

func (h *Handler) UpdateTariff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req tariffRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	tariff, err := h.ledger.UpdateTariff(r.Context(), id, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tariff)
}

func (h *Handler) DeactivateTariff(w http.ResponseWriter, r *http.Request) {
	h.setTariffActive(w, r, h.ledger.DeactivateTariff)
}

func (h *Handler) ActivateTariff(w http.ResponseWriter, r *http.Request) {
	h.setTariffActive(w, r, h.ledger.ActivateTariff)
}

func (h *Handler) setTariffActive(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64) (*models.Tariff, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tariff, err := apply(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tariff)
}

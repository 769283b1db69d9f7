package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/warp/media-budget/budget"
	"github.com/warp/media-budget/factory"
)

// =============================================================================
// BUDGET CONFIGURATION ENDPOINTS
// =============================================================================
//
//   GET    /api/configurations          List configurations
//   POST   /api/configurations          Create from JSON (validated by factory)
//   GET    /api/configurations/{id}     Get configuration
//   PUT    /api/configurations/{id}     Replace name and percentages
//   DELETE /api/configurations/{id}     Delete configuration
//   POST   /api/validate/percentages    Check a map without storing it

var hundredPercent = decimal.NewFromInt(100)

// ListConfigurations returns every stored configuration.
func (h *Handler) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	cfgs, err := h.Store.ListConfigurations(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]ConfigurationDTO, 0, len(cfgs))
	for _, cfg := range cfgs {
		out = append(out, toConfigurationDTO(cfg))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateConfiguration stores a new configuration. Percentages must total 100.
func (h *Handler) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, err := h.parseConfiguration(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var saved budget.BudgetConfiguration
	err = h.Store.WithTx(ctx, func(st budget.Store) error {
		if _, err := st.GetConfiguration(ctx, cfg.ID); err == nil {
			return fmt.Errorf("configuration %s: %w", cfg.ID, errAlreadyExists)
		}
		if err := st.SaveConfiguration(ctx, *cfg); err != nil {
			return err
		}
		var err error
		saved, err = st.GetConfiguration(ctx, cfg.ID)
		return err
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	log.Info().Str("configuration", string(saved.ID)).Int("weeks", len(saved.Percentages)).Msg("configuration created")
	writeJSON(w, http.StatusCreated, toConfigurationDTO(saved))
}

// GetConfiguration returns one configuration.
func (h *Handler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.GetConfiguration(r.Context(), configurationIDParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigurationDTO(cfg))
}

// UpdateConfiguration replaces name and percentages of an existing configuration.
func (h *Handler) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := configurationIDParam(r)

	cfg, err := h.parseConfiguration(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	cfg.ID = id

	var saved budget.BudgetConfiguration
	err = h.Store.WithTx(ctx, func(st budget.Store) error {
		if _, err := st.GetConfiguration(ctx, id); err != nil {
			return err
		}
		if err := st.SaveConfiguration(ctx, *cfg); err != nil {
			return err
		}
		var err error
		saved, err = st.GetConfiguration(ctx, id)
		return err
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigurationDTO(saved))
}

// DeleteConfiguration removes a configuration. Campaigns distributed with it
// keep their amounts.
func (h *Handler) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteConfiguration(r.Context(), configurationIDParam(r)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidatePercentages reports whether a map totals 100 within tolerance.
func (h *Handler) ValidatePercentages(w http.ResponseWriter, r *http.Request) {
	var req ValidatePercentagesRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	check := budget.ValidateTotal(req.Percentages)
	writeJSON(w, http.StatusOK, PercentageCheckDTO{
		Valid:      check.Valid,
		Total:      check.Total,
		Difference: check.Total.Sub(hundredPercent),
	})
}

// parseConfiguration decodes the body and validates it through the factory.
// Factory failures that are not budget errors become 400s.
func (h *Handler) parseConfiguration(r *http.Request) (*budget.BudgetConfiguration, error) {
	var cj factory.ConfigurationJSON
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cj); err != nil {
		return nil, &requestError{msg: fmt.Sprintf("invalid request body: %v", err)}
	}
	cfg, err := h.Configs.FromJSON(cj)
	if err != nil {
		if budget.IsClientError(err) {
			return nil, err
		}
		return nil, &requestError{msg: err.Error()}
	}
	return cfg, nil
}

func configurationIDParam(r *http.Request) budget.ConfigurationID {
	return budget.ConfigurationID(chi.URLParam(r, "id"))
}

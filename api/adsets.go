package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/warp/media-budget/budget"
)

// =============================================================================
// AD SET ENDPOINTS
// =============================================================================
//
//   GET    /api/campaigns/{id}/adsets      List ad sets with derived plan
//   POST   /api/campaigns/{id}/adsets      Create (percentage within headroom)
//   GET    /api/adsets/{id}                Get ad set
//   PUT    /api/adsets/{id}                Update (headroom excludes itself)
//   DELETE /api/adsets/{id}                Delete ad set
//   PUT    /api/adsets/{id}/weeks/{week}   Edit actual spend and/or note

// ListAdSets returns a campaign's ad sets.
func (h *Handler) ListAdSets(w http.ResponseWriter, r *http.Request) {
	c, adSets, err := h.loadTree(r.Context(), campaignIDParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]AdSetDTO, 0, len(adSets))
	for _, a := range adSets {
		out = append(out, toAdSetDTO(c, a))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateAdSet adds an ad set if its percentage fits the remaining headroom.
func (h *Handler) CreateAdSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID := campaignIDParam(r)

	var req AdSetRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}

	a := budget.AdSet{
		ID:               budget.AdSetID(strings.TrimSpace(req.ID)),
		CampaignID:       campaignID,
		Name:             strings.TrimSpace(req.Name),
		BudgetPercentage: *req.BudgetPercentage,
		Description:      req.Description,
		TargetAudience:   req.TargetAudience,
		ActualBudgets:    budget.WeekAmounts{},
		WeeklyNotes:      budget.WeekNotes{},
	}
	if a.ID == "" {
		a.ID = budget.AdSetID(uuid.NewString())
	}

	var (
		parent budget.Campaign
		saved  budget.AdSet
	)
	err := h.Store.WithTx(ctx, func(st budget.Store) error {
		var err error
		if parent, err = st.GetCampaign(ctx, campaignID); err != nil {
			return err
		}
		if _, err := st.GetAdSet(ctx, a.ID); err == nil {
			return fmt.Errorf("ad set %s: %w", a.ID, errAlreadyExists)
		}
		if err := checkHeadroom(ctx, st, campaignID, a.ID, a.BudgetPercentage); err != nil {
			return err
		}
		if err := st.SaveAdSet(ctx, a); err != nil {
			return err
		}
		saved, err = st.GetAdSet(ctx, a.ID)
		return err
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	log.Info().
		Str("campaign", string(campaignID)).
		Str("ad_set", string(saved.ID)).
		Str("percentage", saved.BudgetPercentage.String()).
		Msg("ad set created")
	writeJSON(w, http.StatusCreated, toAdSetDTO(parent, saved))
}

// GetAdSet returns one ad set with its derived weekly plan.
func (h *Handler) GetAdSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := h.Store.GetAdSet(ctx, adSetIDParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	c, err := h.Store.GetCampaign(ctx, a.CampaignID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdSetDTO(c, a))
}

// UpdateAdSet edits name, description and percentage. The new percentage is
// checked against the headroom left by the siblings only.
func (h *Handler) UpdateAdSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := adSetIDParam(r)

	var req AdSetRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.ID != "" && budget.AdSetID(req.ID) != id {
		writeError(w, http.StatusBadRequest, "Ad set ID cannot be changed", nil)
		return
	}

	var (
		parent budget.Campaign
		saved  budget.AdSet
	)
	err := h.Store.WithTx(ctx, func(st budget.Store) error {
		existing, err := st.GetAdSet(ctx, id)
		if err != nil {
			return err
		}
		if parent, err = st.GetCampaign(ctx, existing.CampaignID); err != nil {
			return err
		}
		if err := checkHeadroom(ctx, st, existing.CampaignID, id, *req.BudgetPercentage); err != nil {
			return err
		}
		existing.Name = strings.TrimSpace(req.Name)
		existing.BudgetPercentage = *req.BudgetPercentage
		existing.Description = req.Description
		existing.TargetAudience = req.TargetAudience
		if err := st.SaveAdSet(ctx, existing); err != nil {
			return err
		}
		saved, err = st.GetAdSet(ctx, id)
		return err
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdSetDTO(parent, saved))
}

// DeleteAdSet removes one ad set.
func (h *Handler) DeleteAdSet(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteAdSet(r.Context(), adSetIDParam(r)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateAdSetWeek records actual spend and/or a note for one week.
func (h *Handler) UpdateAdSetWeek(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := adSetIDParam(r)
	week, err := weekParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid week", err)
		return
	}

	var req AdSetCellRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if req.Actual == nil && req.Note == nil {
		writeError(w, http.StatusBadRequest, "Nothing to update", nil)
		return
	}
	if err := nonNegative(req.Actual); err != nil {
		h.writeDomainError(w, err)
		return
	}

	var (
		parent budget.Campaign
		saved  budget.AdSet
	)
	err = h.Store.WithTx(ctx, func(st budget.Store) error {
		if req.Actual != nil {
			if err := st.SetAdSetActual(ctx, id, week, *req.Actual); err != nil {
				return err
			}
		}
		if req.Note != nil {
			if err := st.SetAdSetNote(ctx, id, week, strings.TrimSpace(*req.Note)); err != nil {
				return err
			}
		}
		var err error
		if saved, err = st.GetAdSet(ctx, id); err != nil {
			return err
		}
		parent, err = st.GetCampaign(ctx, saved.CampaignID)
		return err
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdSetDTO(parent, saved))
}

// checkHeadroom validates candidate against every sibling of self.
func checkHeadroom(ctx context.Context, st budget.Store, campaignID budget.CampaignID, self budget.AdSetID, candidate decimal.Decimal) error {
	siblings, err := st.ListAdSets(ctx, campaignID)
	if err != nil {
		return err
	}
	return budget.ValidateAdSetPercentage(candidate, budget.SiblingPercentages(siblings, self))
}

func adSetIDParam(r *http.Request) budget.AdSetID {
	return budget.AdSetID(chi.URLParam(r, "id"))
}

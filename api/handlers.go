/*
handlers.go - HTTP API handlers for the chit engine

PURPOSE:
  Exposes the installment/overdue engine via REST. Handlers parse and
  validate requests, delegate to the ledger and the pure accounting
  functions, and map engine errors onto HTTP status codes.

ENDPOINTS:
  Groups:
    POST   /api/groups                       Create group
    GET    /api/groups/{id}                  Get group (with live period)
    GET    /api/groups/{id}/members          Dashboard: per-member standing
    POST   /api/groups/{id}/members          Enroll a subscription

  Subscriptions:
    GET    /api/subscriptions/{id}           Statement (overdue/due/status)
    PUT    /api/subscriptions/{id}/plan      Administrative units/pattern edit
    GET    /api/subscriptions/{id}/schedule  Period fulfilment report
    POST   /api/subscriptions/{id}/collections       Record payment
    POST   /api/subscriptions/{id}/collections/bulk  Bulk settlement

  Collections:
    PUT    /api/collections/{id}             Edit paid amount (7-day window)
    DELETE /api/collections/{id}             Void (7-day window)

ERROR MAPPING:
  404: missing group/subscription/collection
  409: slots exhausted, sequence conflict (stale or racing client)
  400: validation failures, not-started, out-of-range, future period,
       expired edit window
  500: everything else

SECURITY NOTE:
  No authentication or tenant scoping here; that is owned by the
  deployment's gateway.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AppfinityLabs/chitwise/chit"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger   *chit.Ledger
	Store    chit.TxStore
	validate *validator.Validate
}

// NewHandler creates a handler around a ledger. The store handle is
// taken from the ledger so read paths and write paths share it.
func NewHandler(ledger *chit.Ledger) *Handler {
	return &Handler{
		Ledger:   ledger,
		Store:    ledger.Store(),
		validate: validator.New(),
	}
}

func (h *Handler) now() time.Time { return h.Ledger.Now() }

// =============================================================================
// GROUP HANDLERS
// =============================================================================

// CreateGroup creates a chit scheme.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !h.decode(w, r, &req) {
		return
	}

	contribution, ok := parseAmount(req.ContributionAmount)
	if !ok {
		writeError(w, http.StatusBadRequest, "contribution_amount must be a positive decimal", nil)
		return
	}
	startDate, _ := time.Parse("2006-01-02", req.StartDate)

	g := chit.Group{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		Frequency:          chit.Frequency(req.Frequency),
		ContributionAmount: contribution,
		TotalUnits:         decimal.NewFromFloat(req.TotalUnits),
		TotalPeriods:       req.TotalPeriods,
		StartDate:          startDate,
		Status:             chit.GroupActive,
		CreatedAt:          h.now(),
	}
	if err := h.Store.SaveGroup(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create group", err)
		return
	}

	writeJSON(w, http.StatusCreated, toGroupDTO(g, h.now()))
}

// GetGroup returns one group with its live period index.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.Store.Group(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load group", err)
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "Group not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toGroupDTO(*g, h.now()))
}

// GroupDashboard returns the payment standing of every member, computed
// fresh for this request.
func (h *Handler) GroupDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := h.Store.Group(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load group", err)
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "Group not found", nil)
		return
	}

	subs, err := h.Store.SubscriptionsByGroup(ctx, g.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	now := h.now()
	rows := make([]MemberStandingDTO, len(subs))
	for i, s := range subs {
		rows[i] = MemberStandingDTO{
			Subscription:  toSubscriptionDTO(s),
			OverdueAmount: chit.OverdueAmount(*g, s, now).StringFixed(2),
			DueAmount:     chit.DueAmount(*g, s, now).StringFixed(2),
			PaymentStatus: string(chit.Classify(*g, s, now)),
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

// Enroll creates a subscription in the group.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if !h.decode(w, r, &req) {
		return
	}

	sub, err := h.Ledger.Enroll(r.Context(), chi.URLParam(r, "id"), req.MemberID,
		decimal.NewFromFloat(req.Units), chit.Frequency(req.CollectionPattern))
	if err != nil {
		h.writeEngineError(w, "Failed to enroll member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionDTO(*sub))
}

// =============================================================================
// SUBSCRIPTION HANDLERS
// =============================================================================

// GetStatement returns the subscription with its derived overdue/due
// partition and collection history.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sub, err := h.Store.Subscription(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load subscription", err)
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "Subscription not found", nil)
		return
	}
	g, err := h.Store.Group(ctx, sub.GroupID)
	if err != nil || g == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load group", err)
		return
	}
	collections, err := h.Store.CollectionsBySubscription(ctx, sub.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load collections", err)
		return
	}

	now := h.now()
	writeJSON(w, http.StatusOK, StatementDTO{
		Subscription:  toSubscriptionDTO(*sub),
		CurrentPeriod: chit.CurrentPeriod(*g, now),
		OverdueAmount: chit.OverdueAmount(*g, *sub, now).StringFixed(2),
		DueAmount:     chit.DueAmount(*g, *sub, now).StringFixed(2),
		PaymentStatus: string(chit.Classify(*g, *sub, now)),
		Collections:   toCollectionDTOs(collections),
	})
}

// UpdatePlan applies an administrative edit of units/pattern.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	sub, err := h.Ledger.UpdatePlan(r.Context(), chi.URLParam(r, "id"),
		decimal.NewFromFloat(req.Units), chit.Frequency(req.CollectionPattern))
	if err != nil {
		h.writeEngineError(w, "Failed to update plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionDTO(*sub))
}

// GetSchedule returns the period fulfilment report up to the current
// period.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	report, err := h.Ledger.NextUnfulfilledPeriod(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, "Failed to build schedule", err)
		return
	}

	dtos := make([]PeriodFulfilmentDTO, len(report))
	for i, p := range report {
		dtos[i] = PeriodFulfilmentDTO{
			Period:     p.Period,
			Collected:  p.Collected,
			Total:      p.Total,
			IsComplete: p.IsComplete,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// COLLECTION HANDLERS
// =============================================================================

// RecordCollection records a single payment.
func (h *Handler) RecordCollection(w http.ResponseWriter, r *http.Request) {
	var req RecordCollectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	amount, ok := parseAmount(req.AmountPaid)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount_paid must be a positive decimal", nil)
		return
	}

	in := chit.RecordInput{
		SubscriptionID:   chi.URLParam(r, "id"),
		BasePeriodNumber: req.BasePeriodNumber,
		AmountPaid:       amount,
		PaymentMode:      chit.PaymentMode(req.PaymentMode),
		CollectedBy:      req.CollectedBy,
		Remarks:          req.Remarks,
	}
	if req.PeriodDate != "" {
		d, _ := time.Parse("2006-01-02", req.PeriodDate)
		in.PeriodDate = &d
	}

	c, err := h.Ledger.RecordCollection(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, "Failed to record collection", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCollectionDTO(*c))
}

// RecordBulk settles several installments atomically.
func (h *Handler) RecordBulk(w http.ResponseWriter, r *http.Request) {
	var req RecordBulkRequest
	if !h.decode(w, r, &req) {
		return
	}

	installments := make([]chit.BulkInstallment, len(req.Installments))
	for i, inst := range req.Installments {
		installments[i] = chit.BulkInstallment{BasePeriodNumber: inst.BasePeriodNumber}
	}

	result, err := h.Ledger.RecordBulk(r.Context(), chit.BulkInput{
		SubscriptionID: chi.URLParam(r, "id"),
		PaymentMode:    chit.PaymentMode(req.PaymentMode),
		CollectedBy:    req.CollectedBy,
		Remarks:        req.Remarks,
		Installments:   installments,
	})
	if err != nil {
		h.writeEngineError(w, "Failed to settle installments", err)
		return
	}

	writeJSON(w, http.StatusCreated, BulkResultDTO{
		Collections:  toCollectionDTOs(result.Collections),
		TotalSettled: result.TotalSettled.StringFixed(2),
		Count:        result.Count,
	})
}

// EditCollection replaces a collection's paid amount.
func (h *Handler) EditCollection(w http.ResponseWriter, r *http.Request) {
	var req EditCollectionRequest
	if !h.decode(w, r, &req) {
		return
	}

	amount, ok := parseAmount(req.AmountPaid)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount_paid must be a positive decimal", nil)
		return
	}

	if err := h.Ledger.EditCollection(r.Context(), chi.URLParam(r, "id"), amount); err != nil {
		h.writeEngineError(w, "Failed to edit collection", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VoidCollection reverses a collection.
func (h *Handler) VoidCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.VoidCollection(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeEngineError(w, "Failed to void collection", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON request body; on failure it has
// already written the error response.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case chit.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, chit.ErrSlotsExhausted), chit.IsRetryable(err):
		// Stale client view or racing writer.
		writeError(w, http.StatusConflict, message, err)
	case chit.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

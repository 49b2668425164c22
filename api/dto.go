/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract. Request types carry
  validator tags; the Handler validates them at the boundary before any
  domain call, so the engine only ever sees closed enums and positive
  amounts.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/AppfinityLabs/chitwise/chit"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateGroupRequest creates a chit scheme.
type CreateGroupRequest struct {
	Name               string  `json:"name" validate:"required"`
	Frequency          string  `json:"frequency" validate:"required,oneof=DAILY WEEKLY MONTHLY"`
	ContributionAmount string  `json:"contribution_amount" validate:"required"`
	TotalUnits         float64 `json:"total_units" validate:"required,gt=0"`
	TotalPeriods       int     `json:"total_periods" validate:"required,min=1"`
	StartDate          string  `json:"start_date" validate:"required,datetime=2006-01-02"`
}

// EnrollRequest enrolls a member into a group.
type EnrollRequest struct {
	MemberID          string  `json:"member_id" validate:"required"`
	Units             float64 `json:"units" validate:"required,gt=0"`
	CollectionPattern string  `json:"collection_pattern" validate:"required,oneof=DAILY WEEKLY MONTHLY"`
}

// UpdatePlanRequest is an administrative edit of units/pattern.
type UpdatePlanRequest struct {
	Units             float64 `json:"units" validate:"required,gt=0"`
	CollectionPattern string  `json:"collection_pattern" validate:"required,oneof=DAILY WEEKLY MONTHLY"`
}

// RecordCollectionRequest records a single payment.
type RecordCollectionRequest struct {
	BasePeriodNumber int    `json:"base_period_number" validate:"required,min=1"`
	AmountPaid       string `json:"amount_paid" validate:"required"`
	PaymentMode      string `json:"payment_mode" validate:"required,oneof=CASH UPI BANK_TRANSFER CHEQUE"`
	CollectedBy      string `json:"collected_by"`
	Remarks          string `json:"remarks"`
	PeriodDate       string `json:"period_date" validate:"omitempty,datetime=2006-01-02"`
}

// BulkInstallmentRequest names one period to settle in full.
type BulkInstallmentRequest struct {
	BasePeriodNumber int `json:"base_period_number" validate:"required,min=1"`
}

// RecordBulkRequest settles several installments in one transaction.
type RecordBulkRequest struct {
	PaymentMode  string                   `json:"payment_mode" validate:"required,oneof=CASH UPI BANK_TRANSFER CHEQUE"`
	CollectedBy  string                   `json:"collected_by"`
	Remarks      string                   `json:"remarks"`
	Installments []BulkInstallmentRequest `json:"installments" validate:"required,min=1,dive"`
}

// EditCollectionRequest replaces a collection's paid amount.
type EditCollectionRequest struct {
	AmountPaid string `json:"amount_paid" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GroupDTO represents a group in API responses.
type GroupDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Frequency          string `json:"frequency"`
	ContributionAmount string `json:"contribution_amount"`
	TotalUnits         string `json:"total_units"`
	TotalPeriods       int    `json:"total_periods"`
	StartDate          string `json:"start_date"`
	Status             string `json:"status"`
	CurrentPeriod      int    `json:"current_period"`
}

// SubscriptionDTO represents a subscription in API responses.
type SubscriptionDTO struct {
	ID                string `json:"id"`
	GroupID           string `json:"group_id"`
	MemberID          string `json:"member_id"`
	Units             string `json:"units"`
	CollectionPattern string `json:"collection_pattern"`
	CollectionFactor  int    `json:"collection_factor"`
	TotalDue          string `json:"total_due"`
	TotalCollected    string `json:"total_collected"`
	PendingAmount     string `json:"pending_amount"`
	Status            string `json:"status"`
}

// StatementDTO is the read-path projection for one subscription:
// overdue/due partition, classification, and collection history. All
// derived values are recomputed per request.
type StatementDTO struct {
	Subscription  SubscriptionDTO `json:"subscription"`
	CurrentPeriod int             `json:"current_period"`
	OverdueAmount string          `json:"overdue_amount"`
	DueAmount     string          `json:"due_amount"`
	PaymentStatus string          `json:"payment_status"`
	Collections   []CollectionDTO `json:"collections"`
}

// CollectionDTO represents a recorded payment in API responses.
type CollectionDTO struct {
	ID                 string `json:"id"`
	GroupMemberID      string `json:"group_member_id"`
	GroupID            string `json:"group_id"`
	MemberID           string `json:"member_id"`
	BasePeriodNumber   int    `json:"base_period_number"`
	CollectionSequence int    `json:"collection_sequence"`
	PeriodDate         string `json:"period_date"`
	AmountDue          string `json:"amount_due"`
	AmountPaid         string `json:"amount_paid"`
	PaymentMode        string `json:"payment_mode"`
	CollectedBy        string `json:"collected_by,omitempty"`
	Remarks            string `json:"remarks,omitempty"`
	Status             string `json:"status"`
	CreatedAt          string `json:"created_at"`
}

// BulkResultDTO reports one settled batch.
type BulkResultDTO struct {
	Collections  []CollectionDTO `json:"collections"`
	TotalSettled string          `json:"total_settled"`
	Count        int             `json:"count"`
}

// PeriodFulfilmentDTO is one row of the "what's next" report.
type PeriodFulfilmentDTO struct {
	Period     int  `json:"period"`
	Collected  int  `json:"collected"`
	Total      int  `json:"total"`
	IsComplete bool `json:"is_complete"`
}

// MemberStandingDTO is one row of the group dashboard.
type MemberStandingDTO struct {
	Subscription  SubscriptionDTO `json:"subscription"`
	OverdueAmount string          `json:"overdue_amount"`
	DueAmount     string          `json:"due_amount"`
	PaymentStatus string          `json:"payment_status"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toGroupDTO(g chit.Group, now time.Time) GroupDTO {
	return GroupDTO{
		ID:                 g.ID,
		Name:               g.Name,
		Frequency:          string(g.Frequency),
		ContributionAmount: g.ContributionAmount.String(),
		TotalUnits:         g.TotalUnits.String(),
		TotalPeriods:       g.TotalPeriods,
		StartDate:          g.StartDate.Format("2006-01-02"),
		Status:             string(g.Status),
		CurrentPeriod:      chit.CurrentPeriod(g, now),
	}
}

func toSubscriptionDTO(s chit.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:                s.ID,
		GroupID:           s.GroupID,
		MemberID:          s.MemberID,
		Units:             s.Units.String(),
		CollectionPattern: string(s.CollectionPattern),
		CollectionFactor:  s.CollectionFactor,
		TotalDue:          s.TotalDue.StringFixed(2),
		TotalCollected:    s.TotalCollected.StringFixed(2),
		PendingAmount:     s.PendingAmount.StringFixed(2),
		Status:            string(s.Status),
	}
}

func toCollectionDTO(c chit.Collection) CollectionDTO {
	return CollectionDTO{
		ID:                 c.ID,
		GroupMemberID:      c.GroupMemberID,
		GroupID:            c.GroupID,
		MemberID:           c.MemberID,
		BasePeriodNumber:   c.BasePeriodNumber,
		CollectionSequence: c.CollectionSequence,
		PeriodDate:         c.PeriodDate.Format("2006-01-02"),
		AmountDue:          c.AmountDue.StringFixed(2),
		AmountPaid:         c.AmountPaid.StringFixed(2),
		PaymentMode:        string(c.PaymentMode),
		CollectedBy:        c.CollectedBy,
		Remarks:            c.Remarks,
		Status:             string(c.Status),
		CreatedAt:          c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toCollectionDTOs(cs []chit.Collection) []CollectionDTO {
	dtos := make([]CollectionDTO, len(cs))
	for i, c := range cs {
		dtos[i] = toCollectionDTO(c)
	}
	return dtos
}

func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

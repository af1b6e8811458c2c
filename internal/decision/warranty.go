// Package decision derives the creation-time classification of a repair ticket.
package decision

import (
	"strings"
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// WarrantyMonths is the inclusive coverage window in calendar months.
const WarrantyMonths = 24

var purchaseDateLayouts = []string{"2006-01-02", time.RFC3339}

// ParsePurchaseDate accepts a calendar date or an RFC3339 timestamp. The
// result is the submitted calendar day at midnight UTC; a timestamp keeps the
// day as written in its own offset.
func ParsePurchaseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperrors.NewValidationError("purchase date required", nil)
	}
	for _, layout := range purchaseDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, apperrors.NewValidationError("purchase date is not a valid calendar date",
		map[string]any{"purchase_date": raw})
}

// MonthsBetween counts whole calendar months from purchase to reference.
// The day of month is ignored: Jan 31 to Mar 1 is two months.
func MonthsBetween(purchase, reference time.Time) int {
	purchase = purchase.UTC()
	reference = reference.UTC()
	return (reference.Year()-purchase.Year())*12 + int(reference.Month()) - int(purchase.Month())
}

// ComputeWarrantyStatus classifies a purchase date against the reference instant.
func ComputeWarrantyStatus(purchaseDate string, reference time.Time) (domain.WarrantyStatus, error) {
	purchased, err := ParsePurchaseDate(purchaseDate)
	if err != nil {
		return "", err
	}
	return WarrantyStatusFor(purchased, reference)
}

// WarrantyStatusFor is ComputeWarrantyStatus for an already parsed date.
func WarrantyStatusFor(purchased, reference time.Time) (domain.WarrantyStatus, error) {
	if purchased.After(reference) {
		return "", apperrors.NewValidationError("purchase date is in the future",
			map[string]any{"purchase_date": purchased.Format("2006-01-02")})
	}
	if MonthsBetween(purchased, reference) <= WarrantyMonths {
		return domain.WarrantyUnder, nil
	}
	return domain.WarrantyOut, nil
}

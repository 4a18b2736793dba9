package domain

import (
	"context"
	"errors"
)

type Service interface {
	// GetUsage computes the current snapshot for userID. Read-only.
	GetUsage(ctx context.Context, userID string) (Snapshot, error)
	// TryConsume atomically checks both windows and, if quota remains,
	// appends one query log record. The returned snapshot reflects the
	// just-recorded consumption.
	TryConsume(ctx context.Context, req ConsumeRequest) (Snapshot, error)
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrDailyQuotaExceeded   = errors.New("daily_quota_exceeded")
	ErrMonthlyQuotaExceeded = errors.New("monthly_quota_exceeded")
	// ErrContended means the per-user consume lock could not be acquired.
	ErrContended = errors.New("quota_contended")
)

// IsQuotaExceeded reports whether err is a quota rejection (either window).
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrDailyQuotaExceeded) || errors.Is(err, ErrMonthlyQuotaExceeded)
}

// ExceededScope returns the window scope for a quota rejection: "day" or
// "month", or "" when err is not a quota rejection.
func ExceededScope(err error) string {
	switch {
	case errors.Is(err, ErrDailyQuotaExceeded):
		return "day"
	case errors.Is(err, ErrMonthlyQuotaExceeded):
		return "month"
	default:
		return ""
	}
}

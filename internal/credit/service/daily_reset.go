package service

import (
	"time"

	accountdomain "github.com/creditrail/creditgate/internal/account/domain"
)

// NextUTCMidnight returns midnight UTC of the day after now. Anchoring to
// the calendar boundary instead of now+24h keeps the schedule from drifting.
func NextUTCMidnight(now time.Time) time.Time {
	now = now.UTC()
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

func resetDue(a *accountdomain.Account, now time.Time) bool {
	return a.DailyFreeUsesResetAt == nil || !now.UTC().Before(a.DailyFreeUsesResetAt.UTC())
}

// applyDailyReset rolls the daily allotment over when due. Must run inside
// the same locked transaction as any debit that depends on it. Reports
// whether account state changed.
func applyDailyReset(a *accountdomain.Account, now time.Time) bool {
	if !resetDue(a, now) {
		return false
	}
	a.DailyFreeUsesRemaining = a.DailyFreeUsesLimit
	next := NextUTCMidnight(now)
	a.DailyFreeUsesResetAt = &next
	return true
}

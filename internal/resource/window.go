package resource

import (
	"time"

	"musicroom-core/internal/apperr"
)

const (
	maxFuture = 365 * 24 * time.Hour
	minWindow = time.Hour
)

// validateVotingWindow enforces:
// - start and end (if set) cannot be in the past
// - start and end cannot be more than 1 year in the future
// - end comes after start and leaves at least an hour of voting
func validateVotingWindow(start, end *time.Time, now time.Time) error {
	if start != nil {
		if start.Before(now) {
			return apperr.InvalidArgument("startsAt cannot be in the past")
		}
		if start.After(now.Add(maxFuture)) {
			return apperr.InvalidArgument("startsAt cannot be more than 1 year in the future")
		}
	}
	if end != nil {
		if end.Before(now) {
			return apperr.InvalidArgument("endsAt cannot be in the past")
		}
		if end.After(now.Add(maxFuture)) {
			return apperr.InvalidArgument("endsAt cannot be more than 1 year in the future")
		}
	}
	if start != nil && end != nil {
		if end.Before(*start) {
			return apperr.InvalidArgument("endsAt must be after startsAt")
		}
		if end.Sub(*start) < minWindow {
			return apperr.InvalidArgument("voting window must be at least 1 hour")
		}
	}
	return nil
}

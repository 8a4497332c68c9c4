package services

import "errors"

// Validation errors. The whole request is rejected and nothing is written.
var (
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidSteps     = errors.New("steps must be a non-negative integer")
	ErrUnknownAction    = errors.New("unknown action, expected add or replace")
	ErrEmptyBatch       = errors.New("step batch is empty")
	ErrFutureDate       = errors.New("date is later than today")
	ErrInvalidObjective = errors.New("invalid objective definition")
	ErrInvalidDateRange = errors.New("startDate is after endDate")
)

// Lookup errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrObjectiveNotFound  = errors.New("objective not found")
	ErrAssignmentNotFound = errors.New("objective not assigned today")
)

// State machine errors.
var (
	ErrRequirementNotMet      = errors.New("requirement not met")
	ErrNotCompleted           = errors.New("objective not yet completed")
	ErrObjectiveInactive      = errors.New("objective is not active")
	ErrNotManuallyCompletable = errors.New("objective is completed by events only")
	ErrAlreadyCompleted       = errors.New("objective already completed")
	ErrAlreadyRedeemed        = errors.New("objective already redeemed")
)

// isClientError reports whether err is one of the sentinel errors above.
func isClientError(err error) bool {
	for _, target := range []error{
		ErrInvalidDate, ErrInvalidSteps, ErrUnknownAction, ErrEmptyBatch, ErrFutureDate,
		ErrInvalidObjective, ErrInvalidDateRange, ErrUserNotFound, ErrObjectiveNotFound,
		ErrAssignmentNotFound, ErrRequirementNotMet, ErrNotCompleted, ErrObjectiveInactive,
		ErrNotManuallyCompletable, ErrAlreadyCompleted, ErrAlreadyRedeemed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

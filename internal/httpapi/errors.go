package httpapi

import "errors"

var (
	errMissingItem           = errors.New("item is required")
	errInvalidIntervalAmount = errors.New("intervalAmount must be an integer")
	errInvalidQuantile       = errors.New("quantiles must be floats")
	errInvalidTimeframe      = errors.New("startTime/endTime must be unix seconds")
)

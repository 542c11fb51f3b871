package signal

import "errors"

// ErrInvalidInput marks structural input violations (empty point sets,
// k <= 0, mismatched dimensionality, empty horizon lists). Components wrap it
// with context so callers can distinguish bad configuration from weak
// evidence via errors.Is. Thin evidence is never an error; it degrades to a
// NEUTRAL zero-confidence signal with a reason code.
var ErrInvalidInput = errors.New("invalid input")

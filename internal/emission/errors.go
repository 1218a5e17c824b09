package emission

import "errors"

var (
	// ErrUnknownKind is returned for an activity category outside the closed set.
	ErrUnknownKind = errors.New("unknown activity kind")
	// ErrUnknownSubtype is returned under PolicyStrict when no factor row matches the subtype.
	ErrUnknownSubtype = errors.New("unknown emission factor subtype")
	// ErrQuantityOutOfRange is returned when a quantity would estimate above MaxMass.
	ErrQuantityOutOfRange = errors.New("quantity out of range")
	// ErrInvalidFactor is returned when a factor table contains a negative or non-finite factor.
	ErrInvalidFactor = errors.New("invalid emission factor")
)

package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Evaluation errors
const (
	// ErrCodeEmptySequence indicates a terminal operation needed at least one element.
	ErrCodeEmptySequence ErrorCode = "EMPTY_SEQUENCE"
	// ErrCodeUnboundedMaterialization indicates an infinite sequence reached a
	// terminal operation that must consume every element.
	ErrCodeUnboundedMaterialization ErrorCode = "UNBOUNDED_MATERIALIZATION"
)

// Input errors
const (
	// ErrCodeInvalidArgument indicates an operation received an unusable argument.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeInvalidConfig indicates configuration failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var userFacingCodes = map[ErrorCode]bool{
	ErrCodeInvalidArgument: true,
	ErrCodeInvalidConfig:   true,
}

// IsUserFacing reports whether the code describes a mistake in caller input
// rather than a property of the data or an internal fault.
func IsUserFacing(code ErrorCode) bool {
	return userFacingCodes[code]
}

package calls

import "errors"

var (
	ErrNotFound           = errors.New("call not found")
	ErrDuplicateRequestID = errors.New("call already exists for request id")
	ErrInvalidAnalysis    = errors.New("invalid call analysis payload")
	ErrInvalidInput       = errors.New("invalid call input")
	ErrForbidden          = errors.New("not allowed to modify call")
)

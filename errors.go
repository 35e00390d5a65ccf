package analysiscache

import (
	"errors"
	"fmt"
)

var (
	ErrNilStore = errors.New("analysiscache: Options.Store is required")
	ErrNilFunc  = errors.New("analysiscache: nil generate func")
)

// GeneratorPanicError is returned to every waiter of a generation that panicked.
type GeneratorPanicError struct {
	Key   string
	Value any
}

func (e *GeneratorPanicError) Error() string {
	return fmt.Sprintf("analysiscache: generation for %q panicked: %v", e.Key, e.Value)
}

// InvalidateError reports a partially failed Invalidate. The memory tier is
// always cleared; GenErr and StoreErr say what else did not happen.
type InvalidateError struct {
	Key      string
	GenErr   error
	StoreErr error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.GenErr != nil && e.StoreErr != nil:
		return fmt.Sprintf("invalidate %q: gen bump and store delete failed: bump=%v; delete=%v",
			e.Key, e.GenErr, e.StoreErr)
	case e.GenErr != nil:
		return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Key, e.GenErr)
	case e.StoreErr != nil:
		return fmt.Sprintf("invalidate %q: store delete failed: %v", e.Key, e.StoreErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.GenErr != nil {
		errs = append(errs, e.GenErr)
	}
	if e.StoreErr != nil {
		errs = append(errs, e.StoreErr)
	}
	return errs
}

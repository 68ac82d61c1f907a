package sim

import (
	"errors"
	"fmt"
)

// ErrHalted is returned by every tick after one has failed.
var ErrHalted = errors.New("sim: simulation halted")

// TickError reports the tick and stage at which the estimator failed.
type TickError struct {
	Tick int
	Op   string
	Err  error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("sim: tick %d: %s: %v", e.Tick, e.Op, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}

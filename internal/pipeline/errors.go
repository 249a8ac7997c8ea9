package pipeline

import "fmt"

// UnresolvedDimensionKeyError reports a fact row whose natural key has no
// surrogate mapping after the dimension load. Under the load contract this
// should be impossible, so it aborts the run before any fact write.
type UnresolvedDimensionKeyError struct {
	Dimension string
	Key       string
	OrderID   string
}

func (e *UnresolvedDimensionKeyError) Error() string {
	return fmt.Sprintf("pipeline: order %s references %s key %q with no surrogate", e.OrderID, e.Dimension, e.Key)
}

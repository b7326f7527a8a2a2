// Package retry provides bounded exponential backoff for operations that
// wait on eventually-consistent state.
//
// [WithExponentialBackoff] retries an operation until it succeeds, returns a
// [Fatal] error, the context ends, or the attempt budget is spent; the last
// case is reported as [ErrBudgetExhausted]. [Poll] adapts a boolean condition
// (for example "the webhook Service has endpoints") to the same loop.
package retry

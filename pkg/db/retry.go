package db

import "context"

// RetryRead runs an idempotent read and repeats it once when the first attempt
// fails with a transient store error. Writes must not go through here.
func RetryRead[T any](ctx context.Context, read func() (T, error)) (T, error) {
	out, err := read()
	if err == nil || !IsTransientErr(err) || ctx.Err() != nil {
		return out, err
	}
	return read()
}

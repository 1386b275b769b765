package testutil

import "errors"

// ErrSimulated is returned by fakes standing in for a failing store.
var ErrSimulated = errors.New("simulated error for testing")

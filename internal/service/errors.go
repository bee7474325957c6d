package service

import "errors"

// ErrPrecondition marks a user-visible precondition failure: the requested
// pipeline or mutation cannot start and nothing was changed. Bound methods
// surface it as a blocking dialog rather than a silent failure.
var ErrPrecondition = errors.New("precondition failed")

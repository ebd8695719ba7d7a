package server

import "errors"

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen   = errors.New("listen")
	ErrAccept   = errors.New("accept")
	ErrFatal    = errors.New("fatal startup error")
	ErrShutdown = errors.New("shutdown")
)

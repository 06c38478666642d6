package session

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrUnknownMode        = errors.New("unknown session mode")
	ErrMissingInterview   = errors.New("interview mode requires an interview id and user id")
	ErrMissingUser        = errors.New("session requires a user id")
	ErrFramesUnsupported  = errors.New("session transport does not accept frames")
	ErrTransportStopped   = errors.New("transport stopped")
	ErrTransportNotActive = errors.New("transport not started")
)

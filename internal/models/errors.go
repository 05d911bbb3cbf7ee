package models

import "errors"

var (
	// ErrInvalidParameter signals malformed pagination numerics, a bad body or an unknown kind.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrEngineExecution signals a failed remote query.
	ErrEngineExecution = errors.New("engine execution failed")
	// ErrSinkWrite signals a failed audit append.
	ErrSinkWrite = errors.New("audit sink write failed")
)

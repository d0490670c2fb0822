package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRunInProgress = errors.New("a migration run is already in progress")
)

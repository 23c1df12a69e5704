package orchestrator

import "errors"

// ErrRunNotFound — run не найден в БД.
var ErrRunNotFound = errors.New("run not found")

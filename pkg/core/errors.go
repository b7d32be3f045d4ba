package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrReadOnly      = errors.New("store is in read-only mode")
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrNoBackup      = errors.New("no backup found")
	ErrPinLimit      = fmt.Errorf("you can only pin up to %d notes", MaxPinned)
	ErrInvalidImport = errors.New("invalid import file")
)

package state

import (
	"github.com/rotisserie/eris"
)

var (
	ErrEntityDoesNotExist = eris.New("entity does not exist")
	ErrTypeMismatch       = eris.New("entity type does not match requested type")
	ErrReadOnlyContext    = eris.New("cannot modify state with read only context")
	ErrStoreFull          = eris.New("entity store is at capacity")
)

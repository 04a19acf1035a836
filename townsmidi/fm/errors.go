package fm

import "errors"

var (
	// ErrAlreadyOpen is returned by Open on a driver that is already open.
	ErrAlreadyOpen = errors.New("fm: driver already open")
	// ErrCannotConnect is returned by Open when the hardware fails to initialize.
	ErrCannotConnect = errors.New("fm: cannot connect to hardware")
)

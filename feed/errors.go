package feed

import "errors"

var (
	ErrUnknownView     = errors.New("unknown feed view")
	ErrUnknownDateMode = errors.New("unknown date mode")
)

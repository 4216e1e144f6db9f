package cache

import "errors"

// ErrClosed is returned by drivers after Close.
var ErrClosed = errors.New("cache: driver is closed")

package api

import "errors"

// ErrorOutofMemory returned by allocation APIs when the arena, even
// after a collection cycle and growth, cannot satisfy the request.
// Recoverable, application can release handles and try again.
var ErrorOutofMemory = errors.New("goheap.outofmemory")

// ErrorReleased returned, within panics, when a Handle or an arena is
// used after it was released.
var ErrorReleased = errors.New("goheap.released")

package storage

import "errors"

// ErrNotFound indicates no blob has been stored yet.
var ErrNotFound = errors.New("not found")

// Blob is the persistence port for a single serialized collection kept
// under a fixed key. Implementations must tolerate concurrent callers.
type Blob interface {
	Get() ([]byte, error)
	Put(data []byte) error
	Delete() error
}

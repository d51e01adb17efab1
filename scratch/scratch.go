// Package scratch stores the pixel arrays behind rasters built from memory.
// Entries are owned by the dataset that wrote them and are deleted when the
// dataset is reclaimed.
package scratch

import (
	"context"
	"errors"
	"io"
)

type Driver string

const (
	DriverMemory Driver = "memory"
	DriverFS     Driver = "fs"
	DriverS3     Driver = "s3"
)

var ErrNotFound = errors.New("scratch: key not found")

type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	Driver() Driver
}

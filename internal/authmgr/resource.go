// file: internal/authmgr/resource.go

package authmgr

import (
	"io"
	"sync"
)

// Ownership tells whether this subsystem must release a resource
type Ownership int

const (
	// Owned resources are closed on Release
	Owned Ownership = iota
	// Borrowed resources belong to the caller and are left open
	Borrowed
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}

// Resource tags an externally supplied handle with its ownership.
// Release closes the value at most once, and only if it is owned.
type Resource[T io.Closer] struct {
	value     T
	ownership Ownership

	once sync.Once
	err  error
}

// OwnedResource wraps a value this subsystem must close
func OwnedResource[T io.Closer](v T) *Resource[T] {
	return &Resource[T]{value: v, ownership: Owned}
}

// BorrowedResource wraps a value the caller keeps responsibility for
func BorrowedResource[T io.Closer](v T) *Resource[T] {
	return &Resource[T]{value: v, ownership: Borrowed}
}

// Get returns the wrapped value
func (r *Resource[T]) Get() T {
	return r.value
}

// Ownership returns the ownership tag
func (r *Resource[T]) Ownership() Ownership {
	return r.ownership
}

// Owned reports whether Release will close the value
func (r *Resource[T]) Owned() bool {
	return r.ownership == Owned
}

// Release closes an owned value. Repeated calls return the first result.
func (r *Resource[T]) Release() error {
	if r.ownership != Owned {
		return nil
	}
	r.once.Do(func() {
		r.err = r.value.Close()
	})
	return r.err
}

package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnavailable marks every error returned while the store could not be
// opened. Callers fall back to remote-only operation when they see it.
var ErrUnavailable = errors.New("local store unavailable")

type unavailableStore struct {
	cause error
}

var _ Store = (*unavailableStore)(nil)

// Unavailable returns a Store whose every call fails with ErrUnavailable.
// It stands in when Open fails so dependents degrade instead of crashing.
func Unavailable(cause error) Store {
	return &unavailableStore{cause: cause}
}

// IsUnavailable reports whether err came from a store that could not be opened.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func (u *unavailableStore) err() error {
	if u.cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, u.cause)
}

func (u *unavailableStore) Get(context.Context, string, string, any) error { return u.err() }

func (u *unavailableStore) GetAll(context.Context, string) ([]json.RawMessage, error) {
	return nil, u.err()
}

func (u *unavailableStore) GetAllByIndex(context.Context, string, string, any) ([]json.RawMessage, error) {
	return nil, u.err()
}

func (u *unavailableStore) Put(context.Context, string, Record) error { return u.err() }

func (u *unavailableStore) Delete(context.Context, string, string) error { return u.err() }

func (u *unavailableStore) Close() error { return nil }

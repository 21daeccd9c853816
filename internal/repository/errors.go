package repository

import (
	"errors"
	"fmt"
)

var (
	ErrWriteFailed = errors.New("store write failed")
	ErrReadFailed  = errors.New("store read failed")
)

// StoreError reports a failed store operation. errors.Is matches the
// kind sentinel as well as the underlying driver error.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == e.Kind
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Kind: ErrWriteFailed, Err: err}
}

func readErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Kind: ErrReadFailed, Err: err}
}

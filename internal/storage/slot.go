package storage

import (
	"context"
	"errors"
)

// DefaultKey identifies the persisted period store. It matches the key the
// browser version of the form used, so an exported blob loads unchanged.
const DefaultKey = "saher_petty_cash_data_v1"

// ErrSlotEmpty is returned by Load when nothing has been saved yet.
var ErrSlotEmpty = errors.New("slot is empty")

// Slot is a single named cell holding one serialized blob.
type Slot interface {
	// Load returns the saved blob or ErrSlotEmpty.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the blob.
	Save(ctx context.Context, data []byte) error

	// Quarantine keeps an unreadable blob aside for later inspection and
	// returns a reference to where it went.
	Quarantine(ctx context.Context, data []byte, reason string) (ref string, err error)

	Close() error
}

// ErrReadOnly is returned by writes through a slot wrapped with ReadOnly.
var ErrReadOnly = errors.New("slot is read-only")

// ReadOnly wraps s so that Save and Quarantine fail with ErrReadOnly.
// Tools that only report on the store use it to leave the server as the
// single writer.
func ReadOnly(s Slot) Slot {
	return readOnlySlot{s}
}

type readOnlySlot struct {
	Slot
}

func (readOnlySlot) Save(context.Context, []byte) error {
	return ErrReadOnly
}

func (readOnlySlot) Quarantine(context.Context, []byte, string) (string, error) {
	return "", ErrReadOnly
}

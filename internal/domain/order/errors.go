package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotOrderMessage  = errors.New("not an order message")
	ErrIncompleteOrder  = errors.New("order message is incomplete")
	ErrInvalidDate      = errors.New("invalid delivery date")
	ErrUnknownStatus    = errors.New("unknown order status")
	ErrUnknownAlertMode = errors.New("unknown alert mode")
)

func incomplete(field string) error {
	return fmt.Errorf("%w: %s", ErrIncompleteOrder, field)
}

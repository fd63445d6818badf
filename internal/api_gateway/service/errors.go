package service

import "errors"

// ErrAccountExists is returned when opening an account that already has events
var ErrAccountExists = errors.New("account already exists")

// ErrInvalidOrder is returned when a what-if order cannot be priced
var ErrInvalidOrder = errors.New("invalid order")

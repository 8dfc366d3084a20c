package repository

import "errors"

var (
	// ErrUnitAlreadyDelivered is returned when confirming a unit that was delivered to another client
	ErrUnitAlreadyDelivered = errors.New("inventory unit already delivered to another client")
	// ErrReservationLost is returned when a unit's lease is no longer held by the caller
	ErrReservationLost = errors.New("inventory reservation no longer held")
)

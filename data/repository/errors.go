package repository

import "errors"

var (
	ErrNotFound = errors.New("error not found")
	// ErrEntryValueTooLow is returned when a deduction would drive a portfolio entry below zero.
	ErrEntryValueTooLow = errors.New("error portfolio entry value too low")
	// ErrStatusLocked is returned when an update hits an active purchase in a way only pending
	// and rejected purchases allow: a status change or a new end_date.
	ErrStatusLocked = errors.New("error purchase status locked")
)

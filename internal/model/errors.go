package model

import "errors"

var (
	// ErrDataLookup is returned when the historical data needed by a model is missing
	ErrDataLookup = errors.New("data lookup failed")

	// ErrInsufficientData is returned when a fit has too few usable samples
	ErrInsufficientData = errors.New("insufficient data")
)

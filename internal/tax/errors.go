package tax

import "errors"

var (
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidRate       = errors.New("invalid_rate")
	ErrInvalidDiscount   = errors.New("invalid_discount_percent")
	ErrInvalidGSTPercent = errors.New("invalid_gst_percent")
)

package model

import "fmt"

// Side identifies which half of the book a bucket lives on.
type Side uint8

const (
	Buy  Side = 0
	Sell Side = 1
)

// String returns the canonical name for the side.
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("SIDE(%d)", uint8(s))
	}
}

// ParseSide converts a string into a Side.
func ParseSide(input string) (Side, error) {
	switch input {
	case "BUY", "buy":
		return Buy, nil
	case "SELL", "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("invalid side: %s", input)
	}
}

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

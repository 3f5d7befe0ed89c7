package types

import "errors"

// ------------------------
// Serial line format
// ------------------------

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

// ParseParity accepts "none", "even", "odd" and the empty string (none).
func ParseParity(s string) (Parity, bool) {
	switch s {
	case "", "none":
		return ParityNone, true
	case "even":
		return ParityEven, true
	case "odd":
		return ParityOdd, true
	default:
		return ParityNone, false
	}
}

func (p Parity) MarshalJSON() ([]byte, error) { return []byte(`"` + p.String() + `"`), nil }

func (p *Parity) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return errors.New("parity: want a JSON string")
	}
	v, ok := ParseParity(string(b[1 : len(b)-1]))
	if !ok {
		return errors.New("parity: unknown value " + string(b))
	}
	*p = v
	return nil
}

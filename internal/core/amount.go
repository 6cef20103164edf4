package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Bounds on accepted amounts. Without them a short literal such as "1e50000000"
// expands into megabytes of digits whenever the document is encoded.
const (
	maxAmountExponent = 20
	maxAmountDigits   = 30
)

// Amount is a decimal money value without currency.
//
// Stored documents may carry amounts written by other clients as numbers, numeric
// strings or garbage. Decoding never fails: anything that is not a number decodes as
// zero and is flagged as malformed so Aggregation can report it.
type Amount struct {
	d         decimal.Decimal
	malformed bool
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{d: d}
}

func AmountFromInt(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

// ParseAmount parses user input such as "12.50" or " 1000 ".
// Blank input parses as zero; non-numeric input is an error.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !inRange(d) {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{d: d}, nil
}

// MustAmount is ParseAmount for literals known to be valid.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) IsZero() bool { return a.d.IsZero() }

// Malformed reports whether the value was decoded from something that was not a number.
func (a Amount) Malformed() bool { return a.malformed }

func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

func (a Amount) String() string { return a.d.String() }

// MarshalJSON writes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = Amount{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			a.malformed = true
			return nil
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}

	d, err := decimal.NewFromString(raw)
	if err != nil || !inRange(d) {
		a.malformed = true
		return nil
	}
	a.d = d
	return nil
}

func inRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -maxAmountExponent && exp <= maxAmountExponent && d.NumDigits() <= maxAmountDigits
}

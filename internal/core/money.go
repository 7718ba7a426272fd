package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is an amount in hundredths of a Rupiah.
type Money struct {
	Cents int64
}

// rupiahPrefix matches the id-ID currency pattern, which separates the
// symbol from the number with a no-break space.
const rupiahPrefix = "Rp\u00a0"

// FromRupiah builds Money from a whole Rupiah amount.
func FromRupiah(rp int64) Money { return Money{Cents: rp * 100} }

// ParseAmount converts a non-negative decimal string to Money.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted and the
// third decimal is rounded half-up. Zero is valid; negative values, signs,
// grouping separators and more than one decimal separator are rejected.
//
//	ParseAmount("50000000")  -> 5000000000 cents
//	ParseAmount("12,345")    -> 1235 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return Money{}, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return Money{}, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv >= maxSafe {
		return Money{}, ErrInvalidAmount
	}
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return Money{Cents: iv*100 + frac}, nil
}

// Rupiah rounds to whole Rupiah, halves away from zero.
func (m Money) Rupiah() int64 {
	if m.Cents < 0 {
		return -((-m.Cents + 50) / 100)
	}
	return (m.Cents + 50) / 100
}

// Plain renders the amount without grouping or symbol, e.g. "50000000" or
// "1250.50". Used for CSV and spreadsheet cells.
func (m Money) Plain() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	if c%100 == 0 {
		return sign + strconv.FormatInt(c/100, 10)
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Plain()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(b))
	}
	s := n.String()
	neg := strings.HasPrefix(s, "-")
	parsed, err := ParseAmount(strings.TrimPrefix(s, "-"))
	if err != nil {
		return err
	}
	if neg {
		parsed.Cents = -parsed.Cents
	}
	*m = parsed
	return nil
}

// FormatRupiah renders an amount the way id-ID currency formatting does:
// "Rp 50.000.000" with dot grouping and no fractional digits.
func FormatRupiah(m Money) string {
	rp := m.Rupiah()
	sign := ""
	if rp < 0 {
		sign = "-"
		rp = -rp
	}
	p := message.NewPrinter(language.Indonesian)
	return sign + rupiahPrefix + p.Sprintf("%d", rp)
}

// String implements fmt.Stringer using FormatRupiah.
func (m Money) String() string { return FormatRupiah(m) }

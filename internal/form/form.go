// Package form holds the entry form state and the pure functions that derive,
// resize and validate it. Handlers decode a State from the request, call
// these functions, and render the returned State; nothing here mutates shared
// data.
package form

import (
	"strconv"
	"strings"

	"penjualan/internal/core"
)

// MaxQuantity bounds the number of unit rows a single submission may carry.
const MaxQuantity = 999

// Input field names, shared by validation messages, HTML inputs and JSON.
const (
	FieldDate                   = "date"
	FieldNoPJB                  = "noPJB"
	FieldCustomerName           = "customerName"
	FieldCustomerClassification = "customerClassification"
	FieldQuantity               = "quantity"
	FieldProductType            = "productType"
	FieldHPP                    = "hpp"
	FieldPaymentScheme          = "paymentScheme"
	FieldSalesRepresentative    = "salesRepresentative"
)

// State is the serializable content of the entry form as the user sees it.
// Free-text values are kept raw so they can be re-rendered unchanged.
type State struct {
	Date                   string      `json:"date"`
	NoPJB                  string      `json:"noPJB"`
	CustomerName           string      `json:"customerName"`
	CustomerClassification string      `json:"customerClassification"`
	Quantity               int         `json:"quantity"`
	ProductType            string      `json:"productType"`
	HPP                    string      `json:"hpp"`
	PaymentScheme          string      `json:"paymentScheme"`
	SalesRepresentative    string      `json:"salesRepresentative"`
	Units                  []core.Unit `json:"dynamicFields"`
}

// Derived holds the read-only fields computed from a State.
type Derived struct {
	Month                 string
	Branch                string
	Product               string
	Mark                  string
	Representatives       []string
	RepresentativeEnabled bool
}

// NewState returns the empty form: quantity 1 with one blank unit row.
func NewState() State {
	return State{Quantity: 1, Units: ResizeUnits(nil, 1)}
}

// Derived computes month, branch, product, mark and the representative
// candidates. An unparseable date leaves Month empty.
func (s State) Derived() Derived {
	var d Derived
	if date, err := core.ParseDate(s.Date); err == nil {
		d.Month = core.MonthLabel(date)
	}
	d.Branch = core.DeriveBranch(s.NoPJB)
	d.Product, d.Mark = core.DeriveProductFields(s.ProductType)
	d.Representatives = core.RepresentativesFor(d.Branch)
	d.RepresentativeEnabled = d.Branch != ""
	return d
}

// Normalize enforces the state invariants: quantity within [1, MaxQuantity],
// exactly Quantity unit rows, and a representative that belongs to the
// current branch (a stale selection is cleared).
func (s State) Normalize() State {
	s.Quantity = ClampQuantity(s.Quantity)
	s.Units = ResizeUnits(s.Units, s.Quantity)
	if s.SalesRepresentative != "" && !core.IsRepresentativeOf(core.DeriveBranch(s.NoPJB), s.SalesRepresentative) {
		s.SalesRepresentative = ""
	}
	return s
}

// ResizeUnits returns a new slice of length n. Existing rows are kept in
// order, growth appends blank rows and shrinking truncates from the end.
func ResizeUnits(current []core.Unit, n int) []core.Unit {
	if n < 0 {
		n = 0
	}
	out := make([]core.Unit, n)
	copy(out, current)
	return out
}

func ClampQuantity(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxQuantity {
		return MaxQuantity
	}
	return n
}

// ParseQuantity reads a directly typed quantity; anything that is not a
// number falls back to 1.
func ParseQuantity(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return ClampQuantity(n)
}

// SetQuantity applies a new quantity and resizes the unit rows to match.
func (s State) SetQuantity(n int) State {
	s.Quantity = ClampQuantity(n)
	s.Units = ResizeUnits(s.Units, s.Quantity)
	return s
}

func (s State) Increment() State { return s.SetQuantity(s.Quantity + 1) }

func (s State) Decrement() State { return s.SetQuantity(s.Quantity - 1) }

// SetNoPJB updates the PJB number; a representative that no longer fits the
// derived branch is cleared.
func (s State) SetNoPJB(noPJB string) State {
	s.NoPJB = noPJB
	return s.Normalize()
}

// SetUnit replaces unit row i. Out of range indexes are ignored.
func (s State) SetUnit(i int, u core.Unit) State {
	if i < 0 || i >= len(s.Units) {
		return s
	}
	s.Units = ResizeUnits(s.Units, len(s.Units))
	s.Units[i] = u
	return s
}

// Package listview implements the record browser: filtering, searching,
// option lists, deletion and CSV export over a slice of records.
package listview

import (
	"strings"

	"penjualan/internal/core"
)

// All is the filter value meaning "do not filter on this field".
const All = "all"

// Filters is the list view filter state. Empty values behave like All.
type Filters struct {
	Search       string `json:"search"`
	Branch       string `json:"branch"`
	Month        string `json:"month"`
	CustomerType string `json:"customerType"`
}

// DefaultFilters returns the cleared filter state.
func DefaultFilters() Filters {
	return Filters{Branch: All, Month: All, CustomerType: All}
}

// isAll compares exactly: "ALL" is an ordinary filter value.
func isAll(v string) bool {
	return v == "" || v == All
}

// Active reports whether any filter narrows the list.
func (f Filters) Active() bool {
	return f.Search != "" || !isAll(f.Branch) || !isAll(f.Month) || !isAll(f.CustomerType)
}

// Matches reports whether a single record passes every filter.
func (f Filters) Matches(r core.TransactionRecord) bool {
	// The term is used as given; callers trim user input before it gets here.
	if term := strings.ToLower(f.Search); term != "" {
		found := false
		for _, field := range []string{r.CustomerName, r.NoPJB, r.ProductType, r.SalesRepresentative} {
			if strings.Contains(strings.ToLower(field), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !isAll(f.Branch) && r.Branch != f.Branch {
		return false
	}
	if !isAll(f.Month) && r.Month != f.Month {
		return false
	}
	if !isAll(f.CustomerType) && string(r.CustomerClassification) != f.CustomerType {
		return false
	}
	return true
}

// Apply returns the records passing all filters, in input order. The input
// slice is not modified.
func Apply(records []core.TransactionRecord, f Filters) []core.TransactionRecord {
	out := make([]core.TransactionRecord, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Field names a record column that can populate a filter dropdown.
type Field string

const (
	FieldBranch       Field = "branch"
	FieldMonth        Field = "month"
	FieldCustomerType Field = "customerType"
)

func (f Field) value(r core.TransactionRecord) string {
	switch f {
	case FieldBranch:
		return r.Branch
	case FieldMonth:
		return r.Month
	case FieldCustomerType:
		return string(r.CustomerClassification)
	}
	return ""
}

// DistinctValues lists the non-empty values of field present in records, in
// first-seen order.
func DistinctValues(records []core.TransactionRecord, field Field) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		v := field.value(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Options bundles the dropdown values for the three select filters.
type Options struct {
	Branches      []string
	Months        []string
	CustomerTypes []string
}

func OptionsFor(records []core.TransactionRecord) Options {
	return Options{
		Branches:      DistinctValues(records, FieldBranch),
		Months:        DistinctValues(records, FieldMonth),
		CustomerTypes: DistinctValues(records, FieldCustomerType),
	}
}

// Delete removes the record with id. A missing id returns the records
// unchanged and false.
func Delete(records []core.TransactionRecord, id string) ([]core.TransactionRecord, bool) {
	for i, r := range records {
		if r.ID == id {
			out := make([]core.TransactionRecord, 0, len(records)-1)
			out = append(out, records[:i]...)
			return append(out, records[i+1:]...), true
		}
	}
	return records, false
}

// Find returns the record with id.
func Find(records []core.TransactionRecord, id string) (core.TransactionRecord, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return core.TransactionRecord{}, false
}

// EmptyState distinguishes why a list renders no rows.
type EmptyState int

const (
	HasRows EmptyState = iota
	EmptyNoData
	EmptyNoMatch
)

// Summary backs the "N of M entries" badge.
type Summary struct {
	Shown int
	Total int
	State EmptyState
}

func Summarize(total, shown int) Summary {
	s := Summary{Shown: shown, Total: total}
	switch {
	case total == 0:
		s.State = EmptyNoData
	case shown == 0:
		s.State = EmptyNoMatch
	}
	return s
}

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the calendar date wire format (HTML date inputs, CSV, storage).
const DateLayout = "2006-01-02"

// MonthLayout renders the derived month column, e.g. "January 2024".
const MonthLayout = "January 2006"

// BranchCodeLength is the number of leading No. PJB characters naming a branch.
const BranchCodeLength = 4

type CustomerClassification string

const (
	Business   CustomerClassification = "business"
	Government CustomerClassification = "government"
	Individual CustomerClassification = "individual"
)

type (
	Date struct {
		time.Time
	}

	// Unit carries the per-item identifiers entered for each sold unit.
	Unit struct {
		Marking      string `json:"marking"`
		SerialNumber string `json:"serialNumber"`
		SNEngine     string `json:"snEngine"`
	}

	// TransactionRecord is one submitted sales transaction. Month, Branch,
	// Product and Mark are derived at assembly time and stored alongside.
	TransactionRecord struct {
		ID                     string                 `json:"id"`
		TimeStamp              time.Time              `json:"timeStamp"`
		Date                   Date                   `json:"date"`
		Month                  string                 `json:"month"`
		NoPJB                  string                 `json:"noPJB"`
		Branch                 string                 `json:"branch"`
		CustomerName           string                 `json:"customerName"`
		CustomerClassification CustomerClassification `json:"customerClassification"`
		Quantity               int                    `json:"quantity"`
		ProductType            string                 `json:"productType"`
		Product                string                 `json:"product"`
		Mark                   string                 `json:"mark"`
		HPP                    Money                  `json:"hpp"`
		PaymentScheme          string                 `json:"paymentScheme"`
		SalesRepresentative    string                 `json:"salesRepresentative"`
		Units                  []Unit                 `json:"dynamicFields"`
	}
)

var (
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrDuplicateRecord       = errors.New("duplicate record")
	ErrRecordNotFound        = errors.New("record not found")
	ErrInvalidClassification = errors.New("invalid customer classification")
)

// ErrDuplicateID marks a duplicate caused by the same record id, as opposed
// to another record sharing its No. PJB. It also matches ErrDuplicateRecord.
var ErrDuplicateID = fmt.Errorf("%w: id already stored", ErrDuplicateRecord)

// CustomerClassifications lists the accepted classifications in display order.
func CustomerClassifications() []CustomerClassification {
	return []CustomerClassification{Business, Government, Individual}
}

func (c CustomerClassification) Valid() bool {
	switch c {
	case Business, Government, Individual:
		return true
	}
	return false
}

// Label is the capitalised form shown in the UI.
func (c CustomerClassification) Label() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

func ParseCustomerClassification(s string) (CustomerClassification, error) {
	c := CustomerClassification(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidClassification, s)
	}
	return c, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		// Accept full timestamps too; only the calendar day is kept.
		t, terr := time.Parse(time.RFC3339, s)
		if terr != nil {
			return err
		}
		parsed = NewDate(t.Year(), int(t.Month()), t.Day())
	}
	*d = parsed
	return nil
}

// MonthLabel renders the "Month Year" column for a date; empty for the zero date.
func MonthLabel(d Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(MonthLayout)
}

// DeriveBranch returns the upper-cased first four characters of a No. PJB,
// or "" while fewer than four characters have been entered.
func DeriveBranch(noPJB string) string {
	noPJB = strings.TrimSpace(noPJB)
	if utf8.RuneCountInString(noPJB) < BranchCodeLength {
		return ""
	}
	return strings.ToUpper(string([]rune(noPJB)[:BranchCodeLength]))
}

// DeriveProductFields looks up product and mark for a product type. Unknown
// types yield empty strings.
func DeriveProductFields(productType string) (product, mark string) {
	p, ok := LookupProduct(productType)
	if !ok {
		return "", ""
	}
	return p.Name, p.Mark
}

// Clone returns a deep copy so callers cannot alias stored unit slices.
func (r TransactionRecord) Clone() TransactionRecord {
	if r.Units != nil {
		r.Units = append([]Unit(nil), r.Units...)
	}
	return r
}

// CloneRecords deep-copies a record slice.
func CloneRecords(in []TransactionRecord) []TransactionRecord {
	if in == nil {
		return nil
	}
	out := make([]TransactionRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

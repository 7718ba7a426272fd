package form

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"penjualan/internal/core"
)

// Input is a validated form submission with typed values.
type Input struct {
	Date                   core.Date
	NoPJB                  string
	CustomerName           string
	CustomerClassification core.CustomerClassification
	Quantity               int
	ProductType            string
	HPP                    core.Money
	PaymentScheme          string
	SalesRepresentative    string
	Units                  []core.Unit
}

// Validate checks every rule and reports all failing fields at once. On
// failure the returned error is core.ValidationErrors and Input is zero.
func Validate(s State) (Input, error) {
	var errs core.ValidationErrors
	fail := func(field, msg string) {
		errs = append(errs, core.FieldError{Field: field, Message: msg})
	}

	var in Input

	if strings.TrimSpace(s.Date) == "" {
		fail(FieldDate, "Date is required")
	} else if d, err := core.ParseDate(s.Date); err != nil {
		fail(FieldDate, "Date must be a valid date (YYYY-MM-DD)")
	} else {
		in.Date = d
	}

	in.NoPJB = strings.TrimSpace(s.NoPJB)
	if utf8.RuneCountInString(in.NoPJB) < core.BranchCodeLength {
		fail(FieldNoPJB, "No. PJB must be at least 4 characters")
	}

	in.CustomerName = strings.TrimSpace(s.CustomerName)
	if in.CustomerName == "" {
		fail(FieldCustomerName, "Customer name is required")
	}

	if strings.TrimSpace(s.CustomerClassification) == "" {
		fail(FieldCustomerClassification, "Customer classification is required")
	} else if c, err := core.ParseCustomerClassification(s.CustomerClassification); err != nil {
		fail(FieldCustomerClassification, "Customer classification must be business, government or individual")
	} else {
		in.CustomerClassification = c
	}

	switch {
	case s.Quantity < 1:
		fail(FieldQuantity, "Quantity must be at least 1")
	case s.Quantity > MaxQuantity:
		fail(FieldQuantity, fmt.Sprintf("Quantity must be at most %d", MaxQuantity))
	default:
		in.Quantity = s.Quantity
	}

	in.ProductType = strings.TrimSpace(s.ProductType)
	if in.ProductType == "" {
		fail(FieldProductType, "Product type is required")
	} else if _, ok := core.LookupProduct(in.ProductType); !ok {
		fail(FieldProductType, "Product type is not in the catalog")
	}

	if strings.TrimSpace(s.HPP) == "" {
		fail(FieldHPP, "HPP is required")
	} else if m, err := core.ParseAmount(s.HPP); err != nil {
		fail(FieldHPP, "HPP must be a positive number")
	} else {
		in.HPP = m
	}

	in.PaymentScheme = strings.TrimSpace(s.PaymentScheme)
	if in.PaymentScheme == "" {
		fail(FieldPaymentScheme, "Payment scheme is required")
	} else if !core.IsPaymentScheme(in.PaymentScheme) {
		fail(FieldPaymentScheme, "Payment scheme is not recognized")
	}

	in.SalesRepresentative = strings.TrimSpace(s.SalesRepresentative)
	branch := core.DeriveBranch(in.NoPJB)
	if in.SalesRepresentative == "" {
		fail(FieldSalesRepresentative, "Sales representative is required")
	} else if branch != "" && !core.IsRepresentativeOf(branch, in.SalesRepresentative) {
		fail(FieldSalesRepresentative, fmt.Sprintf("Sales representative does not belong to branch %q", branch))
	}

	if len(errs) > 0 {
		return Input{}, errs
	}

	in.Units = ResizeUnits(nil, in.Quantity)
	for i := range in.Units {
		if i < len(s.Units) {
			in.Units[i] = core.Unit{
				Marking:      strings.TrimSpace(s.Units[i].Marking),
				SerialNumber: strings.TrimSpace(s.Units[i].SerialNumber),
				SNEngine:     strings.TrimSpace(s.Units[i].SNEngine),
			}
		}
	}
	return in, nil
}

// Assemble merges a validated input with its derived fields, a timestamp and
// an identifier. It performs no validation of its own.
func Assemble(in Input, at time.Time, id string) core.TransactionRecord {
	product, mark := core.DeriveProductFields(in.ProductType)
	return core.TransactionRecord{
		ID:                     id,
		TimeStamp:              at.UTC(),
		Date:                   in.Date,
		Month:                  core.MonthLabel(in.Date),
		NoPJB:                  in.NoPJB,
		Branch:                 core.DeriveBranch(in.NoPJB),
		CustomerName:           in.CustomerName,
		CustomerClassification: in.CustomerClassification,
		Quantity:               in.Quantity,
		ProductType:            in.ProductType,
		Product:                product,
		Mark:                   mark,
		HPP:                    in.HPP,
		PaymentScheme:          in.PaymentScheme,
		SalesRepresentative:    in.SalesRepresentative,
		Units:                  append([]core.Unit(nil), in.Units...),
	}
}

// NewRecordID returns a fresh random record identifier.
func NewRecordID() string {
	return uuid.NewString()
}

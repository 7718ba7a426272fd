package core

import "slices"

// Product is the catalog entry a product type resolves to.
type Product struct {
	Name string
	Mark string
}

var productTypes = []string{
	"Engine Type A",
	"Engine Type B",
	"Generator Type A",
	"Generator Type B",
}

var productCatalog = map[string]Product{
	"Engine Type A":    {Name: "Engine Model X1", Mark: "Mark-A1"},
	"Engine Type B":    {Name: "Engine Model X2", Mark: "Mark-B1"},
	"Generator Type A": {Name: "Generator Model G1", Mark: "Mark-G1"},
	"Generator Type B": {Name: "Generator Model G2", Mark: "Mark-G2"},
}

var branchCodes = []string{"JKTB", "BDGB", "SBYB", "DPSB"}

var branchRepresentatives = map[string][]string{
	"JKTB": {"John Doe", "Jane Smith", "Mike Johnson"},
	"BDGB": {"Sarah Wilson", "David Brown", "Lisa Davis"},
	"SBYB": {"Tom Anderson", "Emma Taylor", "Chris Wilson"},
	"DPSB": {"Alex Johnson", "Maria Garcia", "Robert Lee"},
}

var paymentSchemes = []string{
	"Cash",
	"Credit 30 Days",
	"Credit 60 Days",
	"Credit 90 Days",
	"Installment",
}

// ProductTypes returns the selectable product types in display order.
func ProductTypes() []string { return slices.Clone(productTypes) }

func LookupProduct(productType string) (Product, bool) {
	p, ok := productCatalog[productType]
	return p, ok
}

// Branches returns the branch codes that have sales representatives.
func Branches() []string { return slices.Clone(branchCodes) }

// RepresentativesFor returns the sales representatives of a branch, or nil
// when the branch is unknown.
func RepresentativesFor(branch string) []string {
	return slices.Clone(branchRepresentatives[branch])
}

func IsRepresentativeOf(branch, name string) bool {
	return slices.Contains(branchRepresentatives[branch], name)
}

func PaymentSchemes() []string { return slices.Clone(paymentSchemes) }

func IsPaymentScheme(s string) bool { return slices.Contains(paymentSchemes, s) }

package http

import (
	"fmt"
	"html/template"
	"strconv"
	"time"

	"penjualan/internal/core"
	"penjualan/internal/form"
	"penjualan/internal/listview"
)

// Page names used by the navigation bar.
const (
	pageEntry   = "entry"
	pageRecords = "records"
)

const displayTimeLayout = "02 Jan 2006 15:04 MST"

// formView backs the entry form page and its body partial.
type formView struct {
	Page            string
	State           form.State
	Derived         form.Derived
	Errors          map[string]string
	ProductTypes    []string
	PaymentSchemes  []string
	Classifications []core.CustomerClassification
	MaxQuantity     int
}

func newFormView(s form.State, errs core.ValidationErrors) formView {
	return formView{
		Page:            pageEntry,
		State:           s,
		Derived:         s.Derived(),
		Errors:          errs.Map(),
		ProductTypes:    core.ProductTypes(),
		PaymentSchemes:  core.PaymentSchemes(),
		Classifications: core.CustomerClassifications(),
		MaxQuantity:     form.MaxQuantity,
	}
}

// listView backs the record list page and its panel partial.
type listView struct {
	Page      string
	Records   []core.TransactionRecord
	Filters   listview.Filters
	Options   listview.Options
	Summary   listview.Summary
	NoData    bool
	NoMatch   bool
	ExportURL template.URL
}

func newListView(all []core.TransactionRecord, f listview.Filters) listView {
	shown := listview.Apply(all, f)
	summary := listview.Summarize(len(all), len(shown))

	export := "/records/export.csv"
	if q := filterQuery(f); q != "" {
		export += "?" + q
	}

	return listView{
		Page:    pageRecords,
		Records: shown,
		Filters: f,
		Options: listview.OptionsFor(all),
		Summary: summary,
		NoData:  summary.State == listview.EmptyNoData,
		NoMatch: summary.State == listview.EmptyNoMatch,
		// Built from url.Values.Encode, so already escaped.
		ExportURL: template.URL(export),
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"rupiah": core.FormatRupiah,
		"classification": func(c core.CustomerClassification) string {
			return c.Label()
		},
		"unitName": unitFieldName,
		"inc": func(i int) int {
			return i + 1
		},
		"timestamp": func(t time.Time) string {
			return t.UTC().Format(displayTimeLayout)
		},
		"longDate": func(d core.Date) string {
			if d.IsZero() {
				return ""
			}
			return d.Format("January 2, 2006")
		},
		"itemCount": func(n int) string {
			if n == 1 {
				return "1 item"
			}
			return strconv.Itoa(n) + " items"
		},
		"entries": func(s listview.Summary) string {
			return fmt.Sprintf("%d of %d entries", s.Shown, s.Total)
		},
	}
}

package listview

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"penjualan/internal/core"
)

// CSVContentType is the MIME type of exported files.
const CSVContentType = "text/csv"

// TimestampLayout formats the Time Stamp column.
const TimestampLayout = time.RFC3339

type column struct {
	header string
	quote  bool
	value  func(core.TransactionRecord) string
}

// columns fixes the export order. Free-text columns are always quoted.
var columns = []column{
	{"Time Stamp", false, func(r core.TransactionRecord) string { return r.TimeStamp.UTC().Format(TimestampLayout) }},
	{"Month", false, func(r core.TransactionRecord) string { return r.Month }},
	{"Date", false, func(r core.TransactionRecord) string { return r.Date.String() }},
	{"Branch", false, func(r core.TransactionRecord) string { return r.Branch }},
	{"No. PJB", false, func(r core.TransactionRecord) string { return r.NoPJB }},
	{"Customer Name", true, func(r core.TransactionRecord) string { return r.CustomerName }},
	{"Customer Classification", false, func(r core.TransactionRecord) string { return string(r.CustomerClassification) }},
	{"Quantity", false, func(r core.TransactionRecord) string { return strconv.Itoa(r.Quantity) }},
	{"Product Type", true, func(r core.TransactionRecord) string { return r.ProductType }},
	{"Product", true, func(r core.TransactionRecord) string { return r.Product }},
	{"Mark", true, func(r core.TransactionRecord) string { return r.Mark }},
	{"HPP (Rp)", false, func(r core.TransactionRecord) string { return r.HPP.Plain() }},
	{"Payment Scheme", true, func(r core.TransactionRecord) string { return r.PaymentScheme }},
	{"Sales Representative", true, func(r core.TransactionRecord) string { return r.SalesRepresentative }},
}

// Headers returns the export header labels in column order.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

// Row renders one record in export column order, unquoted.
func Row(r core.TransactionRecord) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.value(r)
	}
	return out
}

// WriteCSV writes a header and one line per record. Lines are separated by
// "\n" with no trailing newline. Unit details are not exported.
func WriteCSV(w io.Writer, records []core.TransactionRecord) error {
	bw := bufio.NewWriter(w)
	writeLine(bw, Headers(), nil)
	for _, r := range records {
		bw.WriteByte('\n')
		writeLine(bw, Row(r), columns)
	}
	return bw.Flush()
}

func writeLine(bw *bufio.Writer, fields []string, cols []column) {
	for i, f := range fields {
		if i > 0 {
			bw.WriteByte(',')
		}
		forced := cols != nil && cols[i].quote
		if forced || needsQuotes(f) {
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(f, `"`, `""`))
			bw.WriteByte('"')
			continue
		}
		bw.WriteString(f)
	}
}

func needsQuotes(s string) bool {
	return strings.ContainsAny(s, ",\"\r\n")
}

// ExportFilename names the download after the export day.
func ExportFilename(now time.Time) string {
	return "data-export-" + now.Format(core.DateLayout) + ".csv"
}

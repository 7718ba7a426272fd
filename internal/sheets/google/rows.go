package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"penjualan/internal/core"
	"penjualan/internal/listview"
)

// Sheet layout: column A holds the record id, B..O the export columns in
// export order, P the unit rows as JSON.
const (
	lastColumn   = "P"
	columnCount  = 16
	unitsHeader  = "Units (JSON)"
	idHeader     = "ID"
	exportOffset = 1
)

var errEmptyRow = errors.New("empty row")

func headerRow() []interface{} {
	headers := listview.Headers()
	row := make([]interface{}, 0, columnCount)
	row = append(row, idHeader)
	for _, h := range headers {
		row = append(row, h)
	}
	return append(row, unitsHeader)
}

// recordToRow encodes a record. Quantity and HPP are written as numbers so
// the sheet can aggregate them.
func recordToRow(r core.TransactionRecord) ([]interface{}, error) {
	units, err := json.Marshal(r.Units)
	if err != nil {
		return nil, fmt.Errorf("encode units: %w", err)
	}
	if r.Units == nil {
		units = []byte("[]")
	}
	headers := listview.Headers()
	row := make([]interface{}, 0, columnCount)
	row = append(row, r.ID)
	for i, v := range listview.Row(r) {
		switch headers[i] {
		case "Quantity":
			row = append(row, r.Quantity)
		case "HPP (Rp)":
			row = append(row, float64(r.HPP.Cents)/100)
		default:
			row = append(row, v)
		}
	}
	return append(row, string(units)), nil
}

// rowToRecord decodes a row read with UNFORMATTED_VALUE rendering.
func rowToRecord(row []interface{}) (core.TransactionRecord, error) {
	cells := make([]string, columnCount)
	empty := true
	for i := 0; i < columnCount && i < len(row); i++ {
		cells[i] = cellString(row[i])
		if cells[i] != "" {
			empty = false
		}
	}
	if empty || cells[0] == "" {
		return core.TransactionRecord{}, errEmptyRow
	}
	col := func(i int) string { return cells[exportOffset+i] }

	var rec core.TransactionRecord
	rec.ID = cells[0]

	ts, err := time.Parse(time.RFC3339, col(0))
	if err != nil {
		return rec, fmt.Errorf("time stamp %q: %w", col(0), err)
	}
	rec.TimeStamp = ts.UTC()
	rec.Month = col(1)
	if col(2) != "" {
		d, err := core.ParseDate(col(2))
		if err != nil {
			return rec, err
		}
		rec.Date = d
	}
	rec.Branch = col(3)
	rec.NoPJB = col(4)
	rec.CustomerName = col(5)
	rec.CustomerClassification = core.CustomerClassification(col(6))
	if q := col(7); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return rec, fmt.Errorf("quantity %q: %w", q, err)
		}
		rec.Quantity = n
	}
	rec.ProductType = col(8)
	rec.Product = col(9)
	rec.Mark = col(10)
	if h := col(11); h != "" {
		m, err := core.ParseAmount(h)
		if err != nil {
			return rec, fmt.Errorf("hpp %q: %w", h, err)
		}
		rec.HPP = m
	}
	rec.PaymentScheme = col(12)
	rec.SalesRepresentative = col(13)
	if u := cells[columnCount-1]; u != "" {
		if err := json.Unmarshal([]byte(u), &rec.Units); err != nil {
			return rec, fmt.Errorf("units: %w", err)
		}
	}
	return rec, nil
}

// cellString renders an unformatted cell value. Whole numbers come back as
// float64 and are printed without a fractional part.
func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

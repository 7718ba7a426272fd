package http

// This file turns requests into form state and list filters. Browsers post
// url-encoded fields; API clients may send the same form state as JSON.

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"penjualan/internal/core"
	"penjualan/internal/form"
	"penjualan/internal/listview"
)

const maxBodyBytes = 1 << 20

// Unit row input names are suffixed with the row index, e.g. marking_0.
const (
	unitMarking      = "marking"
	unitSerialNumber = "serialNumber"
	unitSNEngine     = "snEngine"
)

// Form actions posted by the quantity buttons.
const (
	actionIncrement = "increment"
	actionDecrement = "decrement"
)

func unitFieldName(field string, i int) string {
	return field + "_" + strconv.Itoa(i)
}

// requestValues merges query and body values. Unlike r.ParseForm it also
// reads url-encoded DELETE bodies.
func requestValues(r *http.Request) (url.Values, error) {
	if r.Method == http.MethodDelete && r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		values := r.URL.Query()
		if len(body) > 0 {
			parsed, err := url.ParseQuery(string(body))
			if err != nil {
				return nil, fmt.Errorf("parse body: %w", err)
			}
			for k, v := range parsed {
				values[k] = append(values[k], v...)
			}
		}
		return values, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	return r.Form, nil
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// ParseFormState decodes the entry form from a request body. The returned
// state is normalized; action is the quantity button that was pressed, if
// any.
func ParseFormState(r *http.Request) (state form.State, action string, err error) {
	if isJSON(r) {
		var payload struct {
			form.State
			Action string `json:"action"`
		}
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		if err := dec.Decode(&payload); err != nil {
			return form.State{}, "", fmt.Errorf("decode json: %w", err)
		}
		return payload.State.Normalize(), payload.Action, nil
	}

	values, err := requestValues(r)
	if err != nil {
		return form.State{}, "", err
	}
	return StateFromValues(values), values.Get("action"), nil
}

// StateFromValues reads form fields by name. Unit rows beyond the
// submitted quantity are ignored.
func StateFromValues(v url.Values) form.State {
	s := form.State{
		Date:                   sanitizeInput(v.Get(form.FieldDate)),
		NoPJB:                  sanitizeInput(v.Get(form.FieldNoPJB)),
		CustomerName:           sanitizeInput(v.Get(form.FieldCustomerName)),
		CustomerClassification: sanitizeInput(v.Get(form.FieldCustomerClassification)),
		Quantity:               form.ParseQuantity(v.Get(form.FieldQuantity)),
		ProductType:            sanitizeInput(v.Get(form.FieldProductType)),
		HPP:                    sanitizeInput(v.Get(form.FieldHPP)),
		PaymentScheme:          sanitizeInput(v.Get(form.FieldPaymentScheme)),
		SalesRepresentative:    sanitizeInput(v.Get(form.FieldSalesRepresentative)),
	}

	s.Units = make([]core.Unit, s.Quantity)
	for i := range s.Units {
		s.Units[i] = core.Unit{
			Marking:      sanitizeInput(v.Get(unitFieldName(unitMarking, i))),
			SerialNumber: sanitizeInput(v.Get(unitFieldName(unitSerialNumber, i))),
			SNEngine:     sanitizeInput(v.Get(unitFieldName(unitSNEngine, i))),
		}
	}
	return s.Normalize()
}

// applyAction runs a quantity button press against the state.
func applyAction(s form.State, action string) form.State {
	switch action {
	case actionIncrement:
		return s.Increment()
	case actionDecrement:
		return s.Decrement()
	}
	return s
}

// ParseFilters reads the list filters from the query string. clear=1
// resets them.
func ParseFilters(q url.Values) listview.Filters {
	if q.Get("clear") == "1" {
		return listview.DefaultFilters()
	}
	f := listview.DefaultFilters()
	f.Search = sanitizeInput(q.Get("search"))
	if v := sanitizeInput(q.Get("branch")); v != "" {
		f.Branch = v
	}
	if v := sanitizeInput(q.Get("month")); v != "" {
		f.Month = v
	}
	if v := sanitizeInput(q.Get("customerType")); v != "" {
		f.CustomerType = v
	}
	return f
}

// filterQuery renders filters back into a query string so export links
// carry the current view.
func filterQuery(f listview.Filters) string {
	q := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	for key, v := range map[string]string{"branch": f.Branch, "month": f.Month, "customerType": f.CustomerType} {
		if v != "" && v != listview.All {
			q.Set(key, v)
		}
	}
	return q.Encode()
}

// confirmed reports whether a destructive request carries confirm=yes.
func confirmed(v url.Values) bool {
	return strings.EqualFold(strings.TrimSpace(v.Get("confirm")), "yes")
}

// sanitizeInput removes control characters except tab and newline, then
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RawIPO is an IPO record as returned by the backend. Depending on the endpoint
// and the record's age a value may be nested or flat, a number or a numeric
// string, and gmp may be a series, a scalar or missing. Accessors never fail;
// shape decisions are made here once so callers only see resolved values.
type RawIPO struct {
	fields map[string]json.RawMessage
}

// NewRawIPO builds a record from already decoded values, mainly for tests and the CLI
func NewRawIPO(values map[string]interface{}) (RawIPO, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return RawIPO{}, err
	}
	var raw RawIPO
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawIPO{}, err
	}
	return raw, nil
}

// UnmarshalJSON accepts any JSON object; a null record decodes to an empty one
func (r *RawIPO) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		r.fields = map[string]json.RawMessage{}
		return nil
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return fmt.Errorf("ipo record is not an object: %w", err)
	}
	r.fields = fields
	return nil
}

// MarshalJSON writes the record back unchanged
func (r RawIPO) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.fields)
}

// Has reports whether key is present with a non-null value
func (r RawIPO) Has(key string) bool {
	v, ok := r.fields[key]
	return ok && !isNull(v)
}

// Keys lists the top-level keys present in the record
func (r RawIPO) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	return keys
}

// Number reads key as a float. Numeric strings such as "3.5x", "₹1,200" or "12%"
// are accepted; anything else yields 0.
func (r RawIPO) Number(key string) float64 {
	v, ok := r.fields[key]
	if !ok {
		return 0
	}
	return looseNumber(v)
}

// String reads key as text; numbers and booleans are rendered, null yields ""
func (r RawIPO) String(key string) string {
	v, ok := r.fields[key]
	if !ok || isNull(v) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(v))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ""
	}
	return trimmed
}

// Bool reads key as a boolean, accepting true, "true", 1 and "1"
func (r RawIPO) Bool(key string) bool {
	v, ok := r.fields[key]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b
	}
	switch strings.ToLower(strings.Trim(strings.TrimSpace(string(v)), `"`)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Object reads key as a nested record; ok is false when absent or not an object
func (r RawIPO) Object(key string) (RawIPO, bool) {
	v, ok := r.fields[key]
	if !ok || isNull(v) {
		return RawIPO{}, false
	}
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return RawIPO{}, false
	}
	var nested RawIPO
	if err := json.Unmarshal(trimmed, &nested); err != nil {
		return RawIPO{}, false
	}
	return nested, true
}

// GMPKind tags which representation a record's gmp value uses
type GMPKind int

const (
	GMPAbsent GMPKind = iota
	GMPScalar
	GMPSeries
)

func (k GMPKind) String() string {
	switch k {
	case GMPScalar:
		return "scalar"
	case GMPSeries:
		return "series"
	default:
		return "absent"
	}
}

// RawGMPEntry is one element of a gmp series with its date left unparsed
type RawGMPEntry struct {
	Price  float64
	Kostak string
	Date   string
}

// GMPShape is the resolved gmp representation of a record
type GMPShape struct {
	Kind   GMPKind
	Scalar float64
	Series []RawGMPEntry
}

// Latest returns the most recent premium: the last series element, the scalar, or 0
func (g GMPShape) Latest() float64 {
	switch g.Kind {
	case GMPSeries:
		if len(g.Series) == 0 {
			return 0
		}
		return g.Series[len(g.Series)-1].Price
	case GMPScalar:
		return g.Scalar
	default:
		return 0
	}
}

// GMPShape resolves the record's gmp field
func (r RawIPO) GMPShape() GMPShape {
	v, ok := r.fields["gmp"]
	if !ok || isNull(v) {
		return GMPShape{Kind: GMPAbsent}
	}
	trimmed := bytes.TrimSpace(v)

	switch trimmed[0] {
	case '[':
		var items []RawIPO
		if err := json.Unmarshal(trimmed, &items); err != nil {
			// An array of non-objects, e.g. [12, 15]; keep the numbers
			var numbers []json.RawMessage
			if err := json.Unmarshal(trimmed, &numbers); err != nil {
				return GMPShape{Kind: GMPAbsent}
			}
			series := make([]RawGMPEntry, 0, len(numbers))
			for _, n := range numbers {
				series = append(series, RawGMPEntry{Price: looseNumber(n)})
			}
			return GMPShape{Kind: GMPSeries, Series: series}
		}
		series := make([]RawGMPEntry, 0, len(items))
		for _, item := range items {
			series = append(series, RawGMPEntry{
				Price:  item.Number("price"),
				Kostak: item.String("kostak"),
				Date:   item.String("date"),
			})
		}
		return GMPShape{Kind: GMPSeries, Series: series}
	case '{':
		var item RawIPO
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return GMPShape{Kind: GMPAbsent}
		}
		return GMPShape{Kind: GMPSeries, Series: []RawGMPEntry{{
			Price:  item.Number("price"),
			Kostak: item.String("kostak"),
			Date:   item.String("date"),
		}}}
	default:
		if _, ok := parseLooseNumber(trimmed); !ok {
			return GMPShape{Kind: GMPAbsent}
		}
		return GMPShape{Kind: GMPScalar, Scalar: looseNumber(trimmed)}
	}
}

// SectionLayout tags how a grouped section is stored on a record
type SectionLayout int

const (
	ShapeAbsent SectionLayout = iota
	ShapeFlat
	ShapeNested
)

func (l SectionLayout) String() string {
	switch l {
	case ShapeNested:
		return "nested"
	case ShapeFlat:
		return "flat"
	default:
		return "absent"
	}
}

// SectionField pairs a field's key inside the nested object with its flat top-level key
type SectionField struct {
	Nested string
	Flat   string
}

// Section describes a grouped part of the record that may arrive nested or flat
type Section struct {
	Key    string
	Fields []SectionField
}

var (
	SubscriptionSection = Section{Key: "subscription", Fields: []SectionField{
		{"qib", "subscription_qib"},
		{"nii", "subscription_nii"},
		{"bnii", "subscription_bnii"},
		{"snii", "subscription_snii"},
		{"retail", "subscription_retail"},
		{"employee", "subscription_employee"},
		{"total", "subscription_total"},
	}}
	FinancialsSection = Section{Key: "financials", Fields: []SectionField{
		{"revenue", "financials_revenue"},
		{"profit", "financials_profit"},
		{"eps", "financials_eps"},
		{"valuation", "financials_valuation"},
	}}
	ListingInfoSection = Section{Key: "listing_info", Fields: []SectionField{
		{"listing_price", "listing_price"},
		{"listing_gain", "listing_gain"},
		{"day_high", "listing_day_high"},
		{"day_low", "listing_day_low"},
	}}
)

// SectionView reads one section's fields: the nested value when the nested
// object carries the field, else the flat field, else the zero value.
type SectionView struct {
	Layout  SectionLayout
	section Section
	nested  RawIPO
	root    RawIPO
}

// SectionShape resolves how section is stored on the record
func (r RawIPO) SectionShape(section Section) SectionView {
	view := SectionView{Layout: ShapeAbsent, section: section, root: r}
	if nested, ok := r.Object(section.Key); ok {
		view.Layout = ShapeNested
		view.nested = nested
		return view
	}
	for _, f := range section.Fields {
		if r.Has(f.Flat) {
			view.Layout = ShapeFlat
			break
		}
	}
	return view
}

func (v SectionView) lookup(nestedKey string) (RawIPO, string, bool) {
	for _, f := range v.section.Fields {
		if f.Nested != nestedKey {
			continue
		}
		if v.Layout == ShapeNested && v.nested.Has(f.Nested) {
			return v.nested, f.Nested, true
		}
		if v.root.Has(f.Flat) {
			return v.root, f.Flat, true
		}
		return RawIPO{}, "", false
	}
	return RawIPO{}, "", false
}

// Number reads a section field by its nested key
func (v SectionView) Number(nestedKey string) float64 {
	src, key, ok := v.lookup(nestedKey)
	if !ok {
		return 0
	}
	return src.Number(key)
}

// String reads a section field by its nested key
func (v SectionView) String(nestedKey string) string {
	src, key, ok := v.lookup(nestedKey)
	if !ok {
		return ""
	}
	return src.String(key)
}

func isNull(v json.RawMessage) bool {
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func looseNumber(v json.RawMessage) float64 {
	n, _ := parseLooseNumber(v)
	return n
}

var numberNoise = strings.NewReplacer("₹", "", ",", "", "%", "", "x", "", "X", "", "Rs.", "", "Rs", "", " ", "")

func parseLooseNumber(v json.RawMessage) (float64, bool) {
	if isNull(v) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, false
	}
	return ParseLooseNumber(s)
}

// ParseLooseNumber parses display-formatted numbers like "3.5x", "₹1,200" or "-12%"
func ParseLooseNumber(s string) (float64, bool) {
	cleaned := numberNoise.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

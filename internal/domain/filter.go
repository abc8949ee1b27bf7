package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FilterKind decides how filter values are coerced and compared.
type FilterKind int

const (
	KindText FilterKind = iota
	KindUUID
	KindBool
)

// FilterField is one entry of the field-equality allow-list. Column is the
// listing column (and index field) the filter compares against.
type FilterField struct {
	Key    string
	Column string
	Kind   FilterKind
	value  func(*Listing) (string, bool)
}

func textValue(s string) (string, bool) { return s, s != "" }

var filterFields = map[string]FilterField{
	"owner_id":    {Key: "owner_id", Column: "owner_id", Kind: KindUUID, value: func(l *Listing) (string, bool) { return l.OwnerID.String(), true }},
	"schema_id":   {Key: "schema_id", Column: "schema_id", Kind: KindUUID, value: func(l *Listing) (string, bool) { return l.SchemaID.String(), true }},
	"slug":        {Key: "slug", Column: "slug", Kind: KindText, value: func(l *Listing) (string, bool) { return textValue(l.Slug) }},
	"currency":    {Key: "currency", Column: "currency", Kind: KindText, value: func(l *Listing) (string, bool) { return textValue(l.Currency) }},
	"city":        {Key: "city", Column: "city", Kind: KindText, value: func(l *Listing) (string, bool) { return textValue(l.City) }},
	"state":       {Key: "state", Column: "state", Kind: KindText, value: func(l *Listing) (string, bool) { return textValue(l.State) }},
	"country":     {Key: "country", Column: "country", Kind: KindText, value: func(l *Listing) (string, bool) { return textValue(l.Country) }},
	"postal_code": {Key: "postal_code", Column: "postal_code", Kind: KindText, value: func(l *Listing) (string, bool) { return textValue(l.PostalCode) }},
	"is_verified": {Key: "is_verified", Column: "is_verified", Kind: KindBool, value: func(l *Listing) (string, bool) { return strconv.FormatBool(l.IsVerified), true }},
	"is_featured": {Key: "is_featured", Column: "is_featured", Kind: KindBool, value: func(l *Listing) (string, bool) { return strconv.FormatBool(l.IsFeatured), true }},
}

// FilterKeys returns the allow-listed filter keys in sorted order.
func FilterKeys() []string {
	keys := make([]string, 0, len(filterFields))
	for k := range filterFields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsFilterKey reports whether key is on the allow-list.
func IsFilterKey(key string) bool {
	_, ok := filterFields[key]
	return ok
}

// FieldFilter requires the field to equal one of Values. Values are in
// canonical form: UUIDs lowercase hyphenated, booleans "true"/"false".
type FieldFilter struct {
	Field  FilterField
	Values []string
}

func (f FieldFilter) Matches(l *Listing) bool {
	v, ok := f.Field.value(l)
	if !ok {
		return false
	}
	return slices.Contains(f.Values, v)
}

// Bools returns Values parsed back to booleans, for KindBool filters.
func (f FieldFilter) Bools() []bool {
	out := make([]bool, 0, len(f.Values))
	for _, v := range f.Values {
		b, _ := strconv.ParseBool(v)
		out = append(out, b)
	}
	return out
}

// ParseFilters turns loosely typed filter input into allow-listed field
// filters, sorted by key. Keys not on the allow-list and nil values are
// dropped. A value that cannot be coerced to its field's type is an error.
func ParseFilters(raw map[string]any) ([]FieldFilter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []FieldFilter
	for key, value := range raw {
		field, ok := filterFields[key]
		if !ok || value == nil {
			continue
		}
		values, err := coerceAll(field.Kind, value)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", key, err)
		}
		out = append(out, FieldFilter{Field: field, Values: values})
	}
	slices.SortFunc(out, func(a, b FieldFilter) int { return strings.Compare(a.Field.Key, b.Field.Key) })
	return out, nil
}

func coerceAll(kind FilterKind, value any) ([]string, error) {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	default:
		items = []any{v}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		s, err := coerce(kind, item)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func coerce(kind FilterKind, v any) (string, error) {
	switch kind {
	case KindUUID:
		s, ok := v.(string)
		if !ok {
			if id, isID := v.(uuid.UUID); isID {
				return id.String(), nil
			}
			return "", fmt.Errorf("expected a UUID, got %T", v)
		}
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return "", fmt.Errorf("invalid UUID %q", s)
		}
		return id.String(), nil
	case KindBool:
		switch b := v.(type) {
		case bool:
			return strconv.FormatBool(b), nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return "", fmt.Errorf("invalid boolean %q", b)
			}
			return strconv.FormatBool(parsed), nil
		default:
			return "", fmt.Errorf("expected a boolean, got %T", v)
		}
	default:
		switch t := v.(type) {
		case string:
			return t, nil
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(t), nil
		case json.Number:
			return t.String(), nil
		default:
			return "", fmt.Errorf("expected a string, got %T", v)
		}
	}
}

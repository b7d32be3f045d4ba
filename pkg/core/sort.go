package core

import (
	"fmt"
	"slices"
	"strings"
)

// SortField names a sortable note attribute.
type SortField string

const (
	SortUpdatedAt SortField = "updatedAt"
	SortCreatedAt SortField = "createdAt"
	SortTitle     SortField = "title"
	SortCharCount SortField = "charCount"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSort parses "field-order" (e.g. "title-asc"). An empty string yields
// the default listing order, updatedAt descending.
func ParseSort(s string) (SortField, SortOrder, error) {
	if s == "" {
		return SortUpdatedAt, Desc, nil
	}
	field, order, ok := strings.Cut(s, "-")
	if !ok {
		order = string(Desc)
	}
	f := SortField(field)
	switch f {
	case SortUpdatedAt, SortCreatedAt, SortTitle, SortCharCount:
	default:
		return "", "", fmt.Errorf("unknown sort field %q", field)
	}
	o := SortOrder(order)
	if o != Asc && o != Desc {
		return "", "", fmt.Errorf("unknown sort order %q", order)
	}
	return f, o, nil
}

// SortNotes returns a sorted copy of notes. Ties are broken by id so the
// result is deterministic.
func SortNotes(notes []Note, field SortField, order SortOrder) []Note {
	out := slices.Clone(notes)
	slices.SortStableFunc(out, func(a, b Note) int {
		c := compareBy(a, b, field)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if order == Desc {
			return -c
		}
		return c
	})
	return out
}

func compareBy(a, b Note, field SortField) int {
	switch field {
	case SortCreatedAt:
		return cmpInt(a.CreatedAt, b.CreatedAt)
	case SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortCharCount:
		return cmpInt(int64(a.CharCount), int64(b.CharCount))
	default:
		return cmpInt(a.UpdatedAt, b.UpdatedAt)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

package models

import (
	"fmt"
	"sort"
	"strings"
)

// SortOrder selects how a background collection is presented.
type SortOrder string

const (
	SortNone     SortOrder = ""
	SortDateAsc  SortOrder = "date_asc"
	SortDateDesc SortOrder = "date_desc"
	SortNameAsc  SortOrder = "name_asc"
	SortNameDesc SortOrder = "name_desc"
	SortSizeAsc  SortOrder = "size_asc"
	SortSizeDesc SortOrder = "size_desc"
)

var validSortOrders = map[SortOrder]struct{}{
	SortNone:     {},
	SortDateAsc:  {},
	SortDateDesc: {},
	SortNameAsc:  {},
	SortNameDesc: {},
	SortSizeAsc:  {},
	SortSizeDesc: {},
}

// ParseSortOrder validates a user-supplied sort order. Empty keeps insertion order.
func ParseSortOrder(raw string) (SortOrder, error) {
	value := SortOrder(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validSortOrders[value]; !ok {
		return "", fmt.Errorf("invalid sort order: %s", value)
	}
	return value, nil
}

// SortBackgrounds returns a sorted copy of items. Ties keep insertion order.
func SortBackgrounds(items []Background, order SortOrder) []Background {
	out := make([]Background, len(items))
	copy(out, items)

	var less func(a, b Background) bool
	switch order {
	case SortDateAsc:
		less = func(a, b Background) bool { return a.UploadDate.Before(b.UploadDate) }
	case SortDateDesc:
		less = func(a, b Background) bool { return a.UploadDate.After(b.UploadDate) }
	case SortNameAsc:
		less = func(a, b Background) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortNameDesc:
		less = func(a, b Background) bool { return strings.ToLower(a.Name) > strings.ToLower(b.Name) }
	case SortSizeAsc:
		less = func(a, b Background) bool { return sizeOf(a) < sizeOf(b) }
	case SortSizeDesc:
		less = func(a, b Background) bool { return sizeOf(a) > sizeOf(b) }
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func sizeOf(b Background) int64 {
	if b.FileSize == nil {
		return 0
	}
	return *b.FileSize
}

package store

import (
	"context"
	"strconv"
	"strings"
)

// SequenceAllocator computes the next identifier number for a field in a
// collection: max of the numeric portion across all documents, plus the
// increment. An empty collection yields defaultStart.
//
// The read-then-write is not atomic: two concurrent allocations against
// the same collection can observe the same max and collide. Replacing
// this with a store-native atomic increment is tracked in schema.sql.
type SequenceAllocator struct {
	gw *Gateway
}

// Sequences returns the allocator bound to this gateway. It runs against
// the in-memory mirror for any collection the durable store cannot
// serve, transparently to the caller.
func (g *Gateway) Sequences() *SequenceAllocator {
	return &SequenceAllocator{gw: g}
}

func (a *SequenceAllocator) Next(ctx context.Context, collection, field string, increment, defaultStart int64) (int64, error) {
	values, err := a.gw.fieldValues(ctx, collection, field)
	if err != nil {
		return 0, err
	}

	var max int64
	found := false
	for _, v := range values {
		n, ok := numericPortion(v)
		if !ok {
			continue
		}
		if !found || n > max {
			max = n
			found = true
		}
	}
	if !found {
		return defaultStart, nil
	}
	return max + increment, nil
}

// numericPortion extracts the integer part of a field value. String
// values may carry a business prefix ("MV100010", "QUOTE100020"); the
// leading non-digit run is stripped so prefixed and bare numbers
// compare against each other.
func numericPortion(v any) (int64, bool) {
	switch value := v.(type) {
	case int64:
		return value, true
	case int:
		return int64(value), true
	case float64:
		return int64(value), true
	case string:
		digits := strings.TrimLeftFunc(value, func(r rune) bool {
			return r < '0' || r > '9'
		})
		if digits == "" {
			return 0, false
		}
		// A fractional string like "100010.0" still compares on its
		// integer part.
		if dot := strings.IndexByte(digits, '.'); dot >= 0 {
			digits = digits[:dot]
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

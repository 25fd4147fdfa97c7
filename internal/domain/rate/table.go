package rate

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type key struct {
	country string
	city    string
	vehicle string
}

func keyOf(countryCode, city, vehicleType string) key {
	return key{
		country: strings.ToUpper(strings.TrimSpace(countryCode)),
		city:    strings.ToLower(strings.TrimSpace(city)),
		vehicle: strings.ToLower(strings.TrimSpace(vehicleType)),
	}
}

// Table is an immutable, validated set of rate entries. It is safe for concurrent use.
type Table struct {
	entries map[key][]Entry
	size    int
}

// NewTable validates the entries and indexes them by (country, city, vehicle type).
// Entries of one key must not overlap in their effective ranges.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{entries: make(map[key][]Entry)}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		e.CountryCode = strings.ToUpper(strings.TrimSpace(e.CountryCode))
		e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
		k := keyOf(e.CountryCode, e.City, e.VehicleType)
		t.entries[k] = append(t.entries[k], e)
		t.size++
	}

	for k, list := range t.entries {
		sort.Slice(list, func(i, j int) bool {
			return list[i].EffectiveFrom.Before(list[j].EffectiveFrom)
		})
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1], list[i]
			if prev.EffectiveTo == nil || !Day(*prev.EffectiveTo).Before(Day(cur.EffectiveFrom)) {
				return nil, fmt.Errorf("%w: %s/%s/%s from %s", ErrOverlappingRange,
					k.country, k.city, k.vehicle, cur.EffectiveFrom.Format(time.DateOnly))
			}
		}
	}

	return t, nil
}

// Lookup returns the entry for the given key effective on onDate. A city-specific entry
// wins over the country default; among matches the latest EffectiveFrom not after onDate
// is chosen. When neither the city nor the country default matches, a *NotFoundError is
// returned; there is no zero-rate fallback.
func (t *Table) Lookup(countryCode, city, vehicleType string, onDate time.Time) (Entry, error) {
	if city != "" {
		if e, ok := t.match(keyOf(countryCode, city, vehicleType), onDate); ok {
			return e, nil
		}
	}
	if e, ok := t.match(keyOf(countryCode, "", vehicleType), onDate); ok {
		return e, nil
	}
	return Entry{}, &NotFoundError{
		CountryCode: strings.ToUpper(countryCode),
		City:        city,
		VehicleType: vehicleType,
		Date:        Day(onDate),
	}
}

func (t *Table) match(k key, onDate time.Time) (Entry, bool) {
	list := t.entries[k]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Covers(onDate) {
			return list[i], true
		}
	}
	return Entry{}, false
}

// Len returns the number of entries in the table
func (t *Table) Len() int {
	return t.size
}

// Entries returns a copy of all entries ordered by key and effective date
func (t *Table) Entries() []Entry {
	keys := make([]key, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.country != b.country {
			return a.country < b.country
		}
		if a.city != b.city {
			return a.city < b.city
		}
		return a.vehicle < b.vehicle
	})

	out := make([]Entry, 0, t.size)
	for _, k := range keys {
		out = append(out, t.entries[k]...)
	}
	return out
}

// Package geoip is the IP-country fallback (component G): an in-memory
// interval map from IPv4/IPv6 ranges to a country centroid, loaded once
// from a static CSV at service start.
package geoip

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/netip"
	"sort"
	"strconv"
)

// Country is the looked-up fallback location.
type Country struct {
	Code, Name string
	Lat, Lon   float64
}

type entry struct {
	start, end netip.Addr
	country    Country
}

// Table is the loaded interval map; lookups binary-search a slice
// sorted by range start, substituting for the source's interval-tree
// dependency with the stdlib-idiomatic equivalent for a static,
// load-once dataset.
type Table struct {
	entries []entry
}

// LoadCSV parses start_ip, end_ip, continent, country, state, city,
// lat, lon rows. Rows whose country is "ZZ" (unassigned) are skipped.
func LoadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 8

	var entries []entry
	for lineNo := 1; ; lineNo++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("geoip: read csv line %d: %w", lineNo, err)
		}

		if record[3] == "ZZ" {
			continue
		}

		start, err := netip.ParseAddr(record[0])
		if err != nil {
			return nil, fmt.Errorf("geoip: parse start_ip at line %d: %w", lineNo, err)
		}
		end, err := netip.ParseAddr(record[1])
		if err != nil {
			return nil, fmt.Errorf("geoip: parse end_ip at line %d: %w", lineNo, err)
		}
		lat, err := strconv.ParseFloat(record[6], 64)
		if err != nil {
			return nil, fmt.Errorf("geoip: parse lat at line %d: %w", lineNo, err)
		}
		lon, err := strconv.ParseFloat(record[7], 64)
		if err != nil {
			return nil, fmt.Errorf("geoip: parse lon at line %d: %w", lineNo, err)
		}

		entries = append(entries, entry{
			start: start,
			end:   end,
			country: Country{
				Code: record[3],
				Name: record[4],
				Lat:  lat,
				Lon:  lon,
			},
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return compareAddr(entries[i].start, entries[j].start) < 0
	})

	return &Table{entries: entries}, nil
}

// Len reports the number of loaded country ranges.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the unique interval containing ip, if any.
func (t *Table) Lookup(ip netip.Addr) (Country, bool) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return compareAddr(t.entries[i].start, ip) > 0
	})
	if i == 0 {
		return Country{}, false
	}
	candidate := t.entries[i-1]
	if compareAddr(ip, candidate.end) > 0 {
		return Country{}, false
	}
	return candidate.country, true
}

func compareAddr(a, b netip.Addr) int {
	return bytes.Compare(addrBytes(a), addrBytes(b))
}

func addrBytes(a netip.Addr) []byte {
	b := a.As16()
	return b[:]
}

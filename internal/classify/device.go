package classify

import (
	"sort"
	"strings"

	"enos-mapping-backend/internal/point"
)

// deviceSynonyms is the fixed synonym table mapping raw device-type tokens to
// canonical device classes.
var deviceSynonyms = map[point.DeviceClass][]string{
	point.DeviceAHU:  {"AHU", "MAU", "RTU"},
	point.DeviceFCU:  {"FCU", "FAN"},
	point.DeviceCH:   {"CH", "CHILLER", "CHLR"},
	point.DevicePUMP: {"PUMP", "PU", "PMP"},
	point.DeviceCT:   {"CT"},
	point.DeviceCHPL: {"CHPL"},
}

type synonymEntry struct {
	token string
	class point.DeviceClass
}

// synonymIndex holds every synonym sorted longest-first so that a token like
// "CHPL1" resolves to CHPL rather than CH.
var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() []synonymEntry {
	var entries []synonymEntry
	for class, tokens := range deviceSynonyms {
		for _, tok := range tokens {
			entries = append(entries, synonymEntry{token: tok, class: class})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].token) != len(entries[j].token) {
			return len(entries[i].token) > len(entries[j].token)
		}
		return entries[i].token < entries[j].token
	})
	return entries
}

// NormalizeDeviceClass resolves a raw device-type token to a canonical device
// class. Matching is case-insensitive and prefix-based, so tokens carrying a
// trailing instance number ("AHU1", "PMP03") still resolve. Tokens matching
// no synonym map to UNKNOWN.
func NormalizeDeviceClass(token string) point.DeviceClass {
	t := strings.ToUpper(strings.TrimSpace(token))
	if t == "" {
		return point.DeviceUnknown
	}
	for _, entry := range synonymIndex {
		if strings.HasPrefix(t, entry.token) {
			return entry.class
		}
	}
	return point.DeviceUnknown
}

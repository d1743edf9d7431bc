package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	delimRe   = regexp.MustCompile(`[-_.]`)
	numericRe = regexp.MustCompile(`^\d+$`)
)

// ParsedIdentifier holds the structured tokens extracted from a raw BMS point
// name.
type ParsedIdentifier struct {
	// DeviceTypeToken is the first token, uppercased (e.g. "AHU1", "FCU").
	DeviceTypeToken string
	// DeviceInstanceToken identifies the device instance, when present
	// (e.g. "B1-46A" for "FCU-B1-46A.RoomTemp").
	DeviceInstanceToken string
	// ResidualText is the full original name lowercased. The classifier
	// runs substring predicates against it, so the whole name is kept
	// rather than just the remainder after the instance tokens.
	ResidualText string
}

// Identifier splits a raw point name on the "-", "_" and "." delimiters,
// preserving token order. The second token is taken as the device instance;
// when a third token exists and the second is not purely numeric the two are
// joined with "-", which keeps compound instance labels like "B1-46A" intact.
// A name without delimiters yields the whole uppercased string as the device
// type token and no instance.
func Identifier(raw string) (ParsedIdentifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedIdentifier{}, fmt.Errorf("empty point name")
	}

	var tokens []string
	for _, tok := range delimRe.Split(s, -1) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return ParsedIdentifier{}, fmt.Errorf("point name %q contains only delimiters", raw)
	}

	parsed := ParsedIdentifier{
		DeviceTypeToken: strings.ToUpper(tokens[0]),
		ResidualText:    strings.ToLower(s),
	}

	if len(tokens) > 1 {
		instance := tokens[1]
		if len(tokens) > 2 && !numericRe.MatchString(tokens[1]) {
			instance = tokens[1] + "-" + tokens[2]
		}
		parsed.DeviceInstanceToken = instance
	}

	return parsed, nil
}

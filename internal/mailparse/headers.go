package mailparse

import (
	"regexp"
	"strings"
)

var bracketedID = regexp.MustCompile(`<([^<>\s]+)>`)

// ParseMessageIDs extracts message identifiers from a header value such as
// References, in header order with angle brackets removed. Repeated
// identifiers keep their first position. Values without brackets are split
// on whitespace.
func ParseMessageIDs(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	var raw []string
	if matches := bracketedID.FindAllStringSubmatch(header, -1); len(matches) > 0 {
		for _, m := range matches {
			raw = append(raw, m[1])
		}
	} else {
		raw = strings.Fields(header)
	}

	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		id = StripBrackets(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// StripBrackets removes surrounding whitespace and angle brackets
func StripBrackets(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return strings.TrimSpace(id)
}

// FormatMessageID renders a bare identifier in header form
func FormatMessageID(id string) string {
	id = StripBrackets(id)
	if id == "" {
		return ""
	}
	return "<" + id + ">"
}

// FormatReferences renders a reference list as a References header value
func FormatReferences(ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if formatted := FormatMessageID(id); formatted != "" {
			parts = append(parts, formatted)
		}
	}
	return strings.Join(parts, " ")
}

func firstID(header string) string {
	ids := ParseMessageIDs(header)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// parseFromHeader extracts name and email from a From header that net/mail
// rejects. The address is the last bracketed value, else the last token
// containing "@"; whatever precedes it is the display name.
func parseFromHeader(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	if open := strings.LastIndex(from, "<"); open >= 0 {
		addr := from[open+1:]
		if end := strings.Index(addr, ">"); end >= 0 {
			addr = addr[:end]
		}
		if addr = strings.TrimSpace(addr); strings.Contains(addr, "@") {
			return cleanDisplayName(from[:open]), addr
		}
	}

	fields := strings.Fields(from)
	for i := len(fields) - 1; i >= 0; i-- {
		token := strings.Trim(fields[i], "<>,;")
		if strings.Contains(token, "@") {
			return cleanDisplayName(strings.Join(fields[:i], " ")), token
		}
	}

	// Fallback: treat entire string as email
	return "", from
}

func cleanDisplayName(name string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(name), `"`))
}

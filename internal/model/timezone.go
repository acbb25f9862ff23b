package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var offsetRe = regexp.MustCompile(`^(?i:UTC|GMT)?\s*([+-])(\d{1,2})(?::?(\d{2}))?$`)

// LoadLocation resolves a stored timezone: an IANA zone name or a fixed UTC
// offset such as "+3", "-05:30" or "UTC+03:00".
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("invalid timezone %q", name)
	}
	if m := offsetRe.FindStringSubmatch(name); m != nil {
		return fixedZone(m)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// NormalizeTimezone validates name and returns the form that is stored:
// IANA names unchanged, offsets as "UTC+HH:MM".
func NormalizeTimezone(name string) (string, error) {
	loc, err := LoadLocation(name)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

func fixedZone(m []string) (*time.Location, error) {
	hours, _ := strconv.Atoi(m[2])
	mins := 0
	if m[3] != "" {
		mins, _ = strconv.Atoi(m[3])
	}
	if hours > 14 || mins > 59 {
		return nil, fmt.Errorf("offset %s%s out of range", m[1], m[2])
	}
	secs := hours*3600 + mins*60
	if m[1] == "-" {
		secs = -secs
	}
	return time.FixedZone(fmt.Sprintf("UTC%s%02d:%02d", m[1], hours, mins), secs), nil
}

// Package id parses record ids from user input and formats claim
// references.
package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// claimPrefix starts every claim reference.
const claimPrefix = "CLM-"

// Parse parses a single positive id.
func Parse(s string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid id %q: must be positive", s)
	}
	return uint(n), nil
}

// ParseList parses a comma-separated id list like "1, 2,3". Empty items
// are ignored; order and duplicates are kept.
func ParseList(s string) ([]uint, error) {
	var out []uint
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		n, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// FormatClaimRef returns a claim reference like "CLM-2026-04-0007" from the
// submit month and claim id.
func FormatClaimRef(submit time.Time, claimID uint) string {
	return fmt.Sprintf("%s%04d-%02d-%04d", claimPrefix, submit.Year(), int(submit.Month()), claimID)
}

// ParseClaimRef accepts a reference from FormatClaimRef or a bare id and
// returns the claim id.
func ParseClaimRef(ref string) (uint, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(strings.ToUpper(ref), claimPrefix) {
		return Parse(ref)
	}
	parts := strings.SplitN(ref[len(claimPrefix):], "-", 3)
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid claim reference format: %q", ref)
	}
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return 0, fmt.Errorf("invalid year in claim reference %q: %w", ref, err)
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return 0, fmt.Errorf("invalid month in claim reference %q: %w", ref, err)
	}
	return Parse(parts[2])
}

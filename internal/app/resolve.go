package app

import (
	"fmt"
	"strconv"
	"strings"

	"realty/internal/domain"
)

// MatchMode selects how a client-supplied image identifier is resolved.
type MatchMode string

const (
	// MatchSuffix matches the first image whose public_id ends with the
	// fragment. Kept for clients that only have the last path segment.
	MatchSuffix MatchMode = "legacy-suffix"
	// MatchExact requires the full public_id.
	MatchExact MatchMode = "exact"
)

func ParseMatchMode(s string) (MatchMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "suffix", "legacy-suffix", "legacy":
		return MatchSuffix, true
	case "exact":
		return MatchExact, true
	}
	return "", false
}

// findImage returns the index of the first matching image, or -1. An empty
// fragment never matches.
func findImage(imgs []domain.ImageAsset, fragment string, mode MatchMode) int {
	if fragment == "" {
		return -1
	}
	for i, img := range imgs {
		switch mode {
		case MatchExact:
			if img.PublicID == fragment {
				return i
			}
		default:
			if strings.HasSuffix(img.PublicID, fragment) {
				return i
			}
		}
	}
	return -1
}

// SubAreaRef addresses a SubArea either by stable id or, for older clients,
// by positional index.
type SubAreaRef struct {
	Index int
	ID    string
}

// ParseSubAreaRef treats an all-digit segment as an index and anything else
// as an id.
func ParseSubAreaRef(s string) (SubAreaRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SubAreaRef{}, fmt.Errorf("%w: empty sub-area reference", domain.ErrInvalidPayload)
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return SubAreaRef{}, fmt.Errorf("%w: sub-area index %d", domain.ErrNotFound, n)
		}
		return SubAreaRef{Index: n}, nil
	}
	return SubAreaRef{Index: -1, ID: s}, nil
}

func (r SubAreaRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return strconv.Itoa(r.Index)
}

// ResolveSubArea returns the position of ref inside a, or ErrNotFound.
func ResolveSubArea(a domain.Area, ref SubAreaRef) (int, error) {
	if ref.ID != "" {
		if i := a.SubAreaIndexByID(ref.ID); i >= 0 {
			return i, nil
		}
		return -1, fmt.Errorf("%w: sub-area %q", domain.ErrNotFound, ref.ID)
	}
	if ref.Index < 0 || ref.Index >= len(a.SubAreas) {
		return -1, fmt.Errorf("%w: sub-area index %d (have %d)", domain.ErrNotFound, ref.Index, len(a.SubAreas))
	}
	return ref.Index, nil
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinSafetyRating = 1
	MaxSafetyRating = 10
)

// ImageAsset references an image held by the remote image store.
type ImageAsset struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

type AreaHighlights struct {
	TotalPopulation      int      `json:"totalPopulation"`
	AveragePricePerSqft  int      `json:"averagePricePerSqft"`
	MajorAttractions     []string `json:"majorAttractions"`
	HasMetroConnectivity bool     `json:"hasMetroConnectivity"`
}

type SubAreaHighlights struct {
	Roads        string `json:"roads"`
	MetroAccess  string `json:"metroAccess"`
	SafetyRating int    `json:"safetyRating"`
	GreenZones   bool   `json:"greenZones"`
}

// SetSafetyRating stores n clamped to [MinSafetyRating, MaxSafetyRating].
func (h *SubAreaHighlights) SetSafetyRating(n int) {
	h.SafetyRating = ClampSafetyRating(n)
}

func ClampSafetyRating(n int) int {
	if n < MinSafetyRating {
		return MinSafetyRating
	}
	if n > MaxSafetyRating {
		return MaxSafetyRating
	}
	return n
}

// SubArea is embedded in an Area. ID is stable across edits; the positional
// index inside Area.SubAreas is not.
type SubArea struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Images      []ImageAsset      `json:"images"`
	Highlights  SubAreaHighlights `json:"highlights"`
}

type Area struct {
	ID          string         `json:"_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Images      []ImageAsset   `json:"images"`
	Highlights  AreaHighlights `json:"highlights"`
	SubAreas    []SubArea      `json:"subAreas"`
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Normalize replaces nil slices with empty ones so that stored, cached and
// freshly built documents compare and serialize identically.
func (a *Area) Normalize() {
	if a.Images == nil {
		a.Images = []ImageAsset{}
	}
	if a.SubAreas == nil {
		a.SubAreas = []SubArea{}
	}
	if a.Highlights.MajorAttractions == nil {
		a.Highlights.MajorAttractions = []string{}
	}
	for i := range a.SubAreas {
		if a.SubAreas[i].Images == nil {
			a.SubAreas[i].Images = []ImageAsset{}
		}
	}
}

// Validate checks the invariants every persisted Area must hold.
func (a Area) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPayload)
	}
	if err := validateImages(a.Images, "images"); err != nil {
		return err
	}
	for i, sa := range a.SubAreas {
		if strings.TrimSpace(sa.Name) == "" {
			return fmt.Errorf("%w: subAreas[%d].name is required", ErrInvalidPayload, i)
		}
		if sa.Highlights.SafetyRating < MinSafetyRating || sa.Highlights.SafetyRating > MaxSafetyRating {
			return fmt.Errorf("%w: subAreas[%d].highlights.safetyRating out of range", ErrInvalidPayload, i)
		}
		if err := validateImages(sa.Images, fmt.Sprintf("subAreas[%d].images", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateImages(imgs []ImageAsset, field string) error {
	for i, img := range imgs {
		if img.PublicID == "" {
			return fmt.Errorf("%w: %s[%d] has no public_id", ErrInvalidPayload, field, i)
		}
	}
	return nil
}

// PublicIDs returns every image handle owned by the aggregate: Area-level
// images first, then each SubArea's images in order.
func (a Area) PublicIDs() []string {
	out := make([]string, 0, len(a.Images))
	for _, img := range a.Images {
		out = append(out, img.PublicID)
	}
	for _, sa := range a.SubAreas {
		for _, img := range sa.Images {
			out = append(out, img.PublicID)
		}
	}
	return out
}

// SubAreaIndexByID returns the position of the SubArea with the given id, or -1.
func (a Area) SubAreaIndexByID(id string) int {
	for i, sa := range a.SubAreas {
		if sa.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate without aliasing cached or
// repository-owned slices.
func (a Area) Clone() Area {
	out := a
	out.Images = append([]ImageAsset(nil), a.Images...)
	out.Highlights.MajorAttractions = append([]string(nil), a.Highlights.MajorAttractions...)
	out.SubAreas = make([]SubArea, len(a.SubAreas))
	for i, sa := range a.SubAreas {
		sa.Images = append([]ImageAsset(nil), sa.Images...)
		out.SubAreas[i] = sa
	}
	out.Normalize()
	return out
}

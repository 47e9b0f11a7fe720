package app

import (
	"fmt"
	"strconv"
	"strings"

	"realty/internal/domain"
)

// FilePart is one binary part submitted under the "images" field.
type FilePart struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Form is an inbound request body: scalar fields and JSON-encoded structured
// fields as raw strings, plus binary parts in arrival order.
type Form struct {
	Values map[string]string
	Files  []FilePart
}

func (f Form) lookup(key string) (string, bool) {
	if f.Values == nil {
		return "", false
	}
	v, ok := f.Values[key]
	return v, ok
}

// areaDraft is the decoded, not yet persisted, candidate for create/update.
// Pointer fields distinguish "absent" from "present but empty".
type areaDraft struct {
	Name           *string
	Description    *string
	Highlights     *domain.AreaHighlights
	SubAreas       []domain.SubArea
	HasSubAreas    bool
	ExistingImages []domain.ImageAsset
	HasExisting    bool
	Version        *int64
	Files          []FilePart
}

// decodeAreaForm parses every structured field up front so a malformed one
// aborts the operation before any upload or write.
func decodeAreaForm(f Form, update bool) (areaDraft, error) {
	d := areaDraft{Files: f.Files}

	if v, ok := f.lookup("name"); ok {
		name := strings.TrimSpace(v)
		d.Name = &name
	}
	if !update && (d.Name == nil || *d.Name == "") {
		return areaDraft{}, fmt.Errorf("%w: name is required", domain.ErrInvalidPayload)
	}
	if d.Name != nil && *d.Name == "" {
		return areaDraft{}, fmt.Errorf("%w: name must not be blank", domain.ErrInvalidPayload)
	}
	if v, ok := f.lookup("description"); ok {
		desc := v
		d.Description = &desc
	}
	if v, ok := f.lookup("highlights"); ok && strings.TrimSpace(v) != "" {
		h, err := mapAreaHighlights(v)
		if err != nil {
			return areaDraft{}, err
		}
		d.Highlights = &h
	}
	if v, ok := f.lookup("subAreas"); ok && strings.TrimSpace(v) != "" {
		subs, err := parseSubAreas(v)
		if err != nil {
			return areaDraft{}, err
		}
		d.SubAreas, d.HasSubAreas = subs, true
	}
	if !update {
		return d, nil
	}

	if v, ok := f.lookup("existingImages"); ok && strings.TrimSpace(v) != "" {
		imgs, err := parseImages("existingImages", v)
		if err != nil {
			return areaDraft{}, err
		}
		d.ExistingImages, d.HasExisting = imgs, true
	}
	if v, ok := f.lookup("version"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return areaDraft{}, fmt.Errorf("%w: version must be an integer", domain.ErrInvalidPayload)
		}
		d.Version = &n
	}
	return d, nil
}

// buildCreate turns a draft into a fresh Area. Images come only from uploads,
// so any images embedded in subAreas are discarded.
func buildCreate(d areaDraft) domain.Area {
	a := domain.Area{Name: *d.Name}
	if d.Description != nil {
		a.Description = *d.Description
	}
	if d.Highlights != nil {
		a.Highlights = *d.Highlights
	}
	if d.HasSubAreas {
		a.SubAreas = d.SubAreas
		for i := range a.SubAreas {
			a.SubAreas[i].Images = retainOwned(a.SubAreas[i].Images, nil, nil, "", fmt.Sprintf("subAreas[%d].images", i))
		}
		assignSubAreaIDs(a.SubAreas, domain.Area{})
	}
	a.Normalize()
	return a
}

// mergeUpdate applies a draft onto the current document. uploaded holds the
// assets stored for this request (nil while validating before uploads).
//
// Image list policy: existingImages present => retained ++ uploaded;
// absent with uploads => uploaded alone (full replacement);
// absent without uploads => unchanged.
//
// Every public_id ends up on at most one owner. Claims are taken in order:
// an Area image list not driven by existingImages, then the SubAreas, then
// existingImages. A handle moved out of a SubArea can therefore be retained
// at Area level, but a copy of one still held elsewhere is dropped.
func mergeUpdate(current domain.Area, d areaDraft, uploaded []domain.ImageAsset) domain.Area {
	next := current.Clone()
	owned := ownedSet(current)
	claimed := make(map[string]struct{}, len(owned)+len(uploaded))

	if d.Name != nil {
		next.Name = *d.Name
	}
	if d.Description != nil {
		next.Description = *d.Description
	}
	if d.Highlights != nil {
		next.Highlights = *d.Highlights
	}

	if !d.HasExisting {
		if len(d.Files) > 0 {
			next.Images = append([]domain.ImageAsset{}, uploaded...)
		}
		claim(claimed, next.Images)
	} else {
		claim(claimed, uploaded)
	}

	if d.HasSubAreas {
		subs := make([]domain.SubArea, len(d.SubAreas))
		copy(subs, d.SubAreas)
		for i := range subs {
			subs[i].Images = retainOwned(subs[i].Images, owned, claimed, current.ID, fmt.Sprintf("subAreas[%d].images", i))
		}
		assignSubAreaIDs(subs, current)
		next.SubAreas = subs
	} else {
		for _, sa := range next.SubAreas {
			claim(claimed, sa.Images)
		}
	}

	if d.HasExisting {
		imgs := retainOwned(d.ExistingImages, owned, claimed, current.ID, "existingImages")
		next.Images = append(imgs, uploaded...)
	}

	next.Normalize()
	return next
}

type subAreaDraft struct {
	SubArea domain.SubArea
	Files   []FilePart
}

func decodeSubAreaForm(f Form) (subAreaDraft, error) {
	name, _ := f.lookup("name")
	name = strings.TrimSpace(name)
	if name == "" {
		return subAreaDraft{}, fmt.Errorf("%w: name is required", domain.ErrInvalidPayload)
	}
	desc, _ := f.lookup("description")

	sa := domain.SubArea{Name: name, Description: desc}
	if v, ok := f.lookup("highlights"); ok && strings.TrimSpace(v) != "" {
		h, err := parseSubAreaHighlights(v)
		if err != nil {
			return subAreaDraft{}, err
		}
		sa.Highlights = h
	} else {
		sa.Highlights.SetSafetyRating(0)
	}
	return subAreaDraft{SubArea: sa, Files: f.Files}, nil
}

package app

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"realty/internal/domain"
)

/********** alias registries (single source of truth) **********/

// Image entries arrive from the admin console, from older clients that echoed
// the upload middleware's file objects, and from seed files.
var imageAliases = map[string][]string{
	"url":       {"url", "secure_url", "path"},
	"public_id": {"public_id", "publicId", "filename"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// intFlexible: integer from float64/int/string ("12,500" and "12.5" accepted).
// Anything non-numeric, missing or out of range yields 0.
func intFlexible(m map[string]any, path string) int {
	switch v := lookupAny(m, path).(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0
		}
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		return atoiFlexible(v)
	}
	return 0
}

func atoiFlexible(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) &&
		f < math.MaxInt64 && f >= math.MinInt64 {
		return int(f)
	}
	return 0
}

// boolFlexible: bool from bool/"true"/"on"/"1"/non-zero number.
func boolFlexible(m map[string]any, path string) bool {
	switch v := lookupAny(m, path).(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "yes", "1":
			return true
		}
	}
	return false
}

// nonBlankStrings accepts either a JSON array or a comma separated string and
// drops blank or whitespace-only entries. Duplicates are kept.
func nonBlankStrings(m map[string]any, path string) []string {
	out := []string{}
	switch v := lookupAny(m, path).(type) {
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					out = append(out, t)
				}
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if t := strings.TrimSpace(s); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

/********** structured field mappers **********/

func parseJSONField(field, raw string, dst any) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: %s is not valid JSON: %v", domain.ErrInvalidPayload, field, err)
	}
	return nil
}

func mapAreaHighlights(raw string) (domain.AreaHighlights, error) {
	var m map[string]any
	if err := parseJSONField("highlights", raw, &m); err != nil {
		return domain.AreaHighlights{}, err
	}
	return domain.AreaHighlights{
		TotalPopulation:      intFlexible(m, "totalPopulation"),
		AveragePricePerSqft:  intFlexible(m, "averagePricePerSqft"),
		MajorAttractions:     nonBlankStrings(m, "majorAttractions"),
		HasMetroConnectivity: boolFlexible(m, "hasMetroConnectivity"),
	}, nil
}

func mapSubAreaHighlights(m map[string]any) domain.SubAreaHighlights {
	h := domain.SubAreaHighlights{
		Roads:       strings.TrimSpace(lookupStr(m, "roads")),
		MetroAccess: strings.TrimSpace(lookupStr(m, "metroAccess")),
		GreenZones:  boolFlexible(m, "greenZones"),
	}
	h.SetSafetyRating(intFlexible(m, "safetyRating"))
	return h
}

func parseSubAreaHighlights(raw string) (domain.SubAreaHighlights, error) {
	var m map[string]any
	if err := parseJSONField("highlights", raw, &m); err != nil {
		return domain.SubAreaHighlights{}, err
	}
	return mapSubAreaHighlights(m), nil
}

// mapImages keeps entries that carry a public_id; preview-only entries
// (blob URLs, data URIs) never have one and are dropped.
func mapImages(raw []any) []domain.ImageAsset {
	out := []domain.ImageAsset{}
	for _, it := range raw {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		img := domain.ImageAsset{
			URL:      firstNonEmptyAlias(obj, imageAliases, "url"),
			PublicID: firstNonEmptyAlias(obj, imageAliases, "public_id"),
		}
		if img.PublicID == "" {
			continue
		}
		out = append(out, img)
	}
	return out
}

func parseImages(field, raw string) ([]domain.ImageAsset, error) {
	var arr []any
	if err := parseJSONField(field, raw, &arr); err != nil {
		return nil, err
	}
	return mapImages(arr), nil
}

func parseSubAreas(raw string) ([]domain.SubArea, error) {
	var arr []any
	if err := parseJSONField("subAreas", raw, &arr); err != nil {
		return nil, err
	}
	out := make([]domain.SubArea, 0, len(arr))
	for i, it := range arr {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: subAreas[%d] must be an object", domain.ErrInvalidPayload, i)
		}
		var hl map[string]any
		if h, ok := obj["highlights"].(map[string]any); ok {
			hl = h
		}
		imgs, _ := obj["images"].([]any)
		out = append(out, domain.SubArea{
			ID:          strings.TrimSpace(lookupStr(obj, "id")),
			Name:        strings.TrimSpace(lookupStr(obj, "name")),
			Description: lookupStr(obj, "description"),
			Images:      mapImages(imgs),
			Highlights:  mapSubAreaHighlights(hl),
		})
	}
	return out, nil
}

// retainOwned filters imgs down to the handles the Area already owns, so a
// client cannot attach (and later cascade-delete) someone else's asset.
// Handles already in claimed are dropped too, keeping each public_id on a
// single owner within the aggregate; kept handles are added to claimed.
func retainOwned(imgs []domain.ImageAsset, owned, claimed map[string]struct{}, areaID, field string) []domain.ImageAsset {
	out := make([]domain.ImageAsset, 0, len(imgs))
	for _, img := range imgs {
		if _, ok := owned[img.PublicID]; !ok {
			log.Warn().
				Str("area_id", areaID).
				Str("field", field).
				Str("public_id", img.PublicID).
				Msg("dropping image not owned by area")
			continue
		}
		if _, dup := claimed[img.PublicID]; dup {
			log.Warn().
				Str("area_id", areaID).
				Str("field", field).
				Str("public_id", img.PublicID).
				Msg("dropping image already referenced in area")
			continue
		}
		if claimed != nil {
			claimed[img.PublicID] = struct{}{}
		}
		out = append(out, img)
	}
	return out
}

func claim(claimed map[string]struct{}, imgs []domain.ImageAsset) {
	for _, img := range imgs {
		claimed[img.PublicID] = struct{}{}
	}
}

func ownedSet(a domain.Area) map[string]struct{} {
	set := make(map[string]struct{}, 16)
	for _, id := range a.PublicIDs() {
		set[id] = struct{}{}
	}
	return set
}

// assignSubAreaIDs keeps ids that match a SubArea of the current document and
// mints new ones otherwise. A repeated id keeps only its first occurrence.
func assignSubAreaIDs(subs []domain.SubArea, current domain.Area) {
	seen := make(map[string]struct{}, len(subs))
	for i := range subs {
		id := subs[i].ID
		if _, dup := seen[id]; id != "" && !dup && current.SubAreaIndexByID(id) >= 0 {
			seen[id] = struct{}{}
			continue
		}
		subs[i].ID = uuid.NewString()
	}
}

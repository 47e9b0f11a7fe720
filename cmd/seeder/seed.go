package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"realty/internal/app"
)

// seedFile is the YAML layout:
//
//	areas:
//	  - name: Baner
//	    description: ...
//	    highlights: {totalPopulation: 120000, majorAttractions: [Baner Hill]}
//	    subAreas:
//	      - name: Balewadi High Street
//	        highlights: {safetyRating: 8}
type seedFile struct {
	Areas []seedArea `yaml:"areas"`
}

type seedArea struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Highlights  map[string]any   `yaml:"highlights"`
	SubAreas    []map[string]any `yaml:"subAreas"`
}

// loadSeed converts the seed document into the same form values an admin
// client would post, so seeded Areas go through the regular create path.
func loadSeed(r io.Reader) ([]app.Form, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var sf seedFile
	if err := yaml.Unmarshal(raw, &sf); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	out := make([]app.Form, 0, len(sf.Areas))
	for i, a := range sf.Areas {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("areas[%d]: name is required", i)
		}
		vals := map[string]string{"name": a.Name, "description": a.Description}
		if a.Highlights != nil {
			b, err := json.Marshal(a.Highlights)
			if err != nil {
				return nil, fmt.Errorf("areas[%d].highlights: %w", i, err)
			}
			vals["highlights"] = string(b)
		}
		if a.SubAreas != nil {
			b, err := json.Marshal(a.SubAreas)
			if err != nil {
				return nil, fmt.Errorf("areas[%d].subAreas: %w", i, err)
			}
			vals["subAreas"] = string(b)
		}
		out = append(out, app.Form{Values: vals})
	}
	return out, nil
}

package app

import (
	"errors"
	"testing"

	"realty/internal/domain"
)

func TestDecodeAreaForm_Coercion(t *testing.T) {
	d, err := decodeAreaForm(Form{Values: map[string]string{
		"name":       "  Salt Lake  ",
		"highlights": `{"totalPopulation":"1,20,000","averagePricePerSqft":6500.7,"majorAttractions":"Eco Park, ,City Centre,Eco Park","hasMetroConnectivity":"on"}`,
	}}, false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if *d.Name != "Salt Lake" {
		t.Fatalf("name not trimmed: %q", *d.Name)
	}
	h := d.Highlights
	if h.TotalPopulation != 120000 || h.AveragePricePerSqft != 6500 || !h.HasMetroConnectivity {
		t.Fatalf("unexpected highlights: %+v", h)
	}
	want := []string{"Eco Park", "City Centre", "Eco Park"}
	if len(h.MajorAttractions) != len(want) {
		t.Fatalf("got %v", h.MajorAttractions)
	}
	for i := range want {
		if h.MajorAttractions[i] != want[i] {
			t.Fatalf("got %v, want %v", h.MajorAttractions, want)
		}
	}
}

func TestDecodeAreaForm_UpdateFields(t *testing.T) {
	d, err := decodeAreaForm(Form{Values: map[string]string{
		"existingImages": `[{"url":"u","publicId":"p/1"},{"secure_url":"v","public_id":"p/2"},{"url":"blob:x"},"junk"]`,
		"version":        "3",
	}}, true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if d.Name != nil {
		t.Fatalf("name should be absent on update")
	}
	if !d.HasExisting || len(d.ExistingImages) != 2 || d.ExistingImages[1].URL != "v" {
		t.Fatalf("unexpected existing images: %+v", d.ExistingImages)
	}
	if d.Version == nil || *d.Version != 3 {
		t.Fatalf("unexpected version: %v", d.Version)
	}

	for _, bad := range []map[string]string{
		{"existingImages": `{"url":"u"}`},
		{"version": "three"},
		{"name": "   "},
		{"subAreas": `["not-an-object"]`},
	} {
		if _, err := decodeAreaForm(Form{Values: bad}, true); !errors.Is(err, domain.ErrInvalidPayload) {
			t.Fatalf("%v: expected ErrInvalidPayload, got %v", bad, err)
		}
	}
}

func TestDecodeAreaForm_CreateIgnoresUpdateOnlyFields(t *testing.T) {
	d, err := decodeAreaForm(Form{Values: map[string]string{
		"name":           "x",
		"existingImages": `not even json`,
	}}, false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if d.HasExisting {
		t.Fatalf("existingImages must not apply on create")
	}
}

func TestMergeUpdate_ImagePolicy(t *testing.T) {
	A := domain.ImageAsset{URL: "a", PublicID: "p/A"}
	B := domain.ImageAsset{URL: "b", PublicID: "p/B"}
	N := domain.ImageAsset{URL: "n", PublicID: "p/N"}
	cur := domain.Area{ID: "1", Name: "x", Images: []domain.ImageAsset{A, B}}

	got := mergeUpdate(cur, areaDraft{HasExisting: true, ExistingImages: []domain.ImageAsset{B}, Files: make([]FilePart, 1)}, []domain.ImageAsset{N})
	if len(got.Images) != 2 || got.Images[0] != B || got.Images[1] != N {
		t.Fatalf("retained ++ uploaded: %+v", got.Images)
	}

	got = mergeUpdate(cur, areaDraft{Files: make([]FilePart, 1)}, []domain.ImageAsset{N})
	if len(got.Images) != 1 || got.Images[0] != N {
		t.Fatalf("replacement: %+v", got.Images)
	}

	got = mergeUpdate(cur, areaDraft{}, nil)
	if len(got.Images) != 2 {
		t.Fatalf("unchanged: %+v", got.Images)
	}

	got = mergeUpdate(cur, areaDraft{HasExisting: true, ExistingImages: []domain.ImageAsset{}}, nil)
	if len(got.Images) != 0 {
		t.Fatalf("explicit empty retained set clears images: %+v", got.Images)
	}
	if len(cur.Images) != 2 {
		t.Fatalf("merge mutated the current document")
	}
}

func TestMergeUpdate_PublicIDsStaySingleOwned(t *testing.T) {
	p1 := domain.ImageAsset{URL: "u1", PublicID: "p/1"}
	p2 := domain.ImageAsset{URL: "u2", PublicID: "p/2"}
	cur := domain.Area{
		ID:       "1",
		Name:     "x",
		Images:   []domain.ImageAsset{p1},
		SubAreas: []domain.SubArea{{ID: "s1", Name: "s", Images: []domain.ImageAsset{p2}}},
	}

	// repeated handle in existingImages
	got := mergeUpdate(cur, areaDraft{HasExisting: true, ExistingImages: []domain.ImageAsset{p1, p1}}, nil)
	if len(got.Images) != 1 || got.Images[0] != p1 {
		t.Fatalf("repeat kept: %+v", got.Images)
	}

	// sub-area handle copied to the Area level while the SubArea still holds it
	got = mergeUpdate(cur, areaDraft{HasExisting: true, ExistingImages: []domain.ImageAsset{p1, p1, p2}}, nil)
	if len(got.Images) != 1 || got.Images[0] != p1 {
		t.Fatalf("copied sub-area image kept: %+v", got.Images)
	}
	if len(got.SubAreas[0].Images) != 1 || got.SubAreas[0].Images[0] != p2 {
		t.Fatalf("sub-area lost its image: %+v", got.SubAreas[0].Images)
	}

	// Area handle copied into a SubArea while the Area keeps it
	subs := []domain.SubArea{{ID: "s1", Name: "s", Images: []domain.ImageAsset{p2, p1}}}
	got = mergeUpdate(cur, areaDraft{HasSubAreas: true, SubAreas: subs}, nil)
	if len(got.SubAreas[0].Images) != 1 || got.SubAreas[0].Images[0] != p2 {
		t.Fatalf("copied area image kept in sub-area: %+v", got.SubAreas[0].Images)
	}

	// moved out of the SubArea: the Area may retain it
	moved := []domain.SubArea{{ID: "s1", Name: "s"}}
	got = mergeUpdate(cur, areaDraft{HasSubAreas: true, SubAreas: moved, HasExisting: true, ExistingImages: []domain.ImageAsset{p1, p2}}, nil)
	if len(got.Images) != 2 || len(got.SubAreas[0].Images) != 0 {
		t.Fatalf("move not honoured: %+v / %+v", got.Images, got.SubAreas[0].Images)
	}
}

func TestIntFlexible_LargeValues(t *testing.T) {
	m := map[string]any{
		"f":   float64(3_000_000_000),
		"s":   "3,000,000,000",
		"big": 1e19,
	}
	if got := intFlexible(m, "f"); got != 3_000_000_000 {
		t.Fatalf("float: %d", got)
	}
	if got := intFlexible(m, "s"); got != 3_000_000_000 {
		t.Fatalf("string: %d", got)
	}
	if got := intFlexible(m, "big"); got != 0 {
		t.Fatalf("out of range should be 0, got %d", got)
	}
	if got := atoiFlexible("4.5e9"); got != 4_500_000_000 {
		t.Fatalf("exponent: %d", got)
	}
}

func TestDetached(t *testing.T) {
	before := domain.Area{
		Images:   []domain.ImageAsset{{PublicID: "a"}, {PublicID: "b"}},
		SubAreas: []domain.SubArea{{Images: []domain.ImageAsset{{PublicID: "s"}}}},
	}
	after := domain.Area{Images: []domain.ImageAsset{{PublicID: "b"}, {PublicID: "new"}}}
	got := detached(before, after)
	if len(got) != 2 || got[0] != "a" || got[1] != "s" {
		t.Fatalf("got %v", got)
	}
}

func TestParseSubAreaRef(t *testing.T) {
	r, err := ParseSubAreaRef("2")
	if err != nil || r.Index != 2 || r.ID != "" {
		t.Fatalf("index ref: %+v %v", r, err)
	}
	r, err = ParseSubAreaRef("0b7c2c1e-6f7a-4a53-9f51-1a3c1f0e9d10")
	if err != nil || r.ID == "" || r.Index != -1 {
		t.Fatalf("id ref: %+v %v", r, err)
	}
	if _, err := ParseSubAreaRef("-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("negative index: %v", err)
	}
	if _, err := ParseSubAreaRef(""); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("empty ref: %v", err)
	}
}

func TestFindImage(t *testing.T) {
	imgs := []domain.ImageAsset{{PublicID: "folder/xyzabc123"}, {PublicID: "folder/abc123"}}
	if i := findImage(imgs, "abc123", MatchSuffix); i != 0 {
		t.Fatalf("suffix first match: %d", i)
	}
	if i := findImage(imgs, "folder/abc123", MatchExact); i != 1 {
		t.Fatalf("exact: %d", i)
	}
	if i := findImage(imgs, "folder", MatchSuffix); i != -1 {
		t.Fatalf("prefix must not match: %d", i)
	}
}

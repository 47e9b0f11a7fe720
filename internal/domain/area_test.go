package domain_test

import (
	"errors"
	"testing"

	"realty/internal/domain"
)

func TestClampSafetyRating(t *testing.T) {
	cases := map[int]int{-3: 1, 0: 1, 1: 1, 7: 7, 10: 10, 11: 10, 999: 10}
	for in, want := range cases {
		var h domain.SubAreaHighlights
		h.SetSafetyRating(in)
		if h.SafetyRating != want {
			t.Fatalf("SetSafetyRating(%d) = %d, want %d", in, h.SafetyRating, want)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := domain.Area{
		Name:   "Gachibowli",
		Images: []domain.ImageAsset{{URL: "u", PublicID: "p"}},
		SubAreas: []domain.SubArea{{
			Name:       "Financial District",
			Highlights: domain.SubAreaHighlights{SafetyRating: 8},
		}},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	bad := []domain.Area{
		{Name: "  "},
		{Name: "a", Images: []domain.ImageAsset{{URL: "preview-only"}}},
		{Name: "a", SubAreas: []domain.SubArea{{Name: "", Highlights: domain.SubAreaHighlights{SafetyRating: 5}}}},
		{Name: "a", SubAreas: []domain.SubArea{{Name: "s", Highlights: domain.SubAreaHighlights{SafetyRating: 0}}}},
		{Name: "a", SubAreas: []domain.SubArea{{Name: "s", Highlights: domain.SubAreaHighlights{SafetyRating: 3},
			Images: []domain.ImageAsset{{URL: "x"}}}}},
	}
	for i, a := range bad {
		if err := a.Validate(); !errors.Is(err, domain.ErrInvalidPayload) {
			t.Fatalf("case %d: expected ErrInvalidPayload, got %v", i, err)
		}
	}
}

func TestPublicIDsOrder(t *testing.T) {
	a := domain.Area{
		Images: []domain.ImageAsset{{PublicID: "a1"}, {PublicID: "a2"}},
		SubAreas: []domain.SubArea{
			{Images: []domain.ImageAsset{{PublicID: "s1"}}},
			{Images: []domain.ImageAsset{{PublicID: "s2"}, {PublicID: "s3"}}},
		},
	}
	got := a.PublicIDs()
	want := []string{"a1", "a2", "s1", "s2", "s3"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	a := domain.Area{
		Images:   []domain.ImageAsset{{PublicID: "a1"}},
		SubAreas: []domain.SubArea{{Images: []domain.ImageAsset{{PublicID: "s1"}}}},
	}
	c := a.Clone()
	c.Images[0].PublicID = "changed"
	c.SubAreas[0].Images[0].PublicID = "changed"
	if a.Images[0].PublicID != "a1" || a.SubAreas[0].Images[0].PublicID != "s1" {
		t.Fatalf("clone aliased the original: %+v", a)
	}
	if c.Highlights.MajorAttractions == nil {
		t.Fatalf("expected normalized slices on clone")
	}
}

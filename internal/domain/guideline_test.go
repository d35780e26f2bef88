package domain

import "testing"

func TestSubtopicContentValidate(t *testing.T) {
	cons := SubtopicContent{Mode: GenerationConsolidated, Consolidated: &ConsolidatedContent{Guidance: "g"}}
	if err := cons.Validate(); err != nil {
		t.Fatalf("valid consolidated content rejected: %v", err)
	}

	legacy := SubtopicContent{Mode: GenerationLegacy, Legacy: &LegacyContent{Objectives: []string{"o"}}}
	if err := legacy.Validate(); err != nil {
		t.Fatalf("valid legacy content rejected: %v", err)
	}

	both := SubtopicContent{
		Mode:         GenerationConsolidated,
		Consolidated: &ConsolidatedContent{Guidance: "g"},
		Legacy:       &LegacyContent{Objectives: []string{"o"}},
	}
	if err := both.Validate(); err == nil {
		t.Fatalf("content with both payloads set must be rejected")
	}

	if err := (SubtopicContent{Mode: "weird"}).Validate(); err == nil {
		t.Fatalf("unknown generation mode must be rejected")
	}
}

func TestSubtopicContentHashStable(t *testing.T) {
	a := SubtopicContent{Mode: GenerationConsolidated, Consolidated: &ConsolidatedContent{Guidance: "same"}}
	b := SubtopicContent{Mode: GenerationConsolidated, Consolidated: &ConsolidatedContent{Guidance: "same"}}
	if a.Hash() != b.Hash() {
		t.Fatalf("identical content must hash identically")
	}

	c := SubtopicContent{Mode: GenerationConsolidated, Consolidated: &ConsolidatedContent{Guidance: "different"}}
	if a.Hash() == c.Hash() {
		t.Fatalf("different content must hash differently")
	}

	// Same bytes under a different mode tag are different content.
	d := SubtopicContent{Mode: GenerationLegacy, Legacy: &LegacyContent{Objectives: []string{"same"}}}
	if a.Hash() == d.Hash() {
		t.Fatalf("mode tag must participate in the hash")
	}
}

func TestSubtopicSetContentRoundTrip(t *testing.T) {
	var s GuidelineSubtopic
	in := SubtopicContent{Mode: GenerationLegacy, Legacy: &LegacyContent{
		Objectives:     []string{"count to ten"},
		Misconceptions: []string{"zero is not a number"},
	}}
	if err := s.SetContent(in); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	if s.Generation != GenerationLegacy {
		t.Fatalf("generation tag not set, got %q", s.Generation)
	}
	if s.ConsolidatedContent != nil {
		t.Fatalf("legacy write must clear the consolidated payload")
	}
	if s.ContentHash != in.Hash() {
		t.Fatalf("content hash mismatch")
	}

	out, err := s.Content()
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if out.Legacy == nil || len(out.Legacy.Objectives) != 1 || out.Legacy.Objectives[0] != "count to ten" {
		t.Fatalf("round-tripped payload mismatch: %+v", out.Legacy)
	}
}

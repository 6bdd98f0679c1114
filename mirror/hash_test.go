package mirror

import "testing"

func TestAssistantHashStableAndSensitive(t *testing.T) {
	a := &UpstreamAssistant{Name: "bot", Config: map[string]interface{}{"k": "v"}, Version: 1}
	h1 := assistantHash(a)
	h2 := assistantHash(a)
	if h1 != h2 {
		t.Fatalf("expected stable hash for identical input, got %s vs %s", h1, h2)
	}

	b := *a
	b.Name = "bot2"
	if assistantHash(&b) == h1 {
		t.Fatalf("expected hash to change when name changes")
	}
}

func TestIsTemplate(t *testing.T) {
	if !isTemplate(map[string]interface{}{"created_by": "system"}) {
		t.Fatalf("expected metadata.created_by=system to be a template")
	}
	if isTemplate(map[string]interface{}{"created_by": "user-1"}) {
		t.Fatalf("expected non-system created_by to not be a template")
	}
	if isTemplate(nil) {
		t.Fatalf("expected nil metadata to not be a template")
	}
}

func TestExtractAndWithTags(t *testing.T) {
	meta := map[string]interface{}{"created_by": "user-1", "_x_oap_tags": []interface{}{"finance", "q3"}}
	tags := extractTags(meta)
	if len(tags) != 2 || tags[0] != "finance" || tags[1] != "q3" {
		t.Fatalf("unexpected tags: %v", tags)
	}

	if extractTags(map[string]interface{}{}) != nil {
		t.Fatalf("expected nil tags when key absent")
	}

	updated := withTags(map[string]interface{}{"created_by": "user-1"}, []string{"a", "b"})
	if updated["created_by"] != "user-1" {
		t.Fatalf("withTags must preserve existing keys")
	}
	roundtrip := extractTags(updated)
	if len(roundtrip) != 2 || roundtrip[0] != "a" {
		t.Fatalf("unexpected roundtrip tags: %v", roundtrip)
	}
}

func TestHasVersion(t *testing.T) {
	versions := []AssistantVersion{{Version: 1}, {Version: 3}}
	if !hasVersion(versions, 3) {
		t.Fatalf("expected version 3 to be found")
	}
	if hasVersion(versions, 2) {
		t.Fatalf("expected version 2 to be absent")
	}
}

package docstore

import "testing"

func Test_ContentID_Deterministic(t *testing.T) {
	t.Parallel()

	a := ContentID("hello world", map[string]any{"k": "v"})
	b := ContentID("hello world", map[string]any{"k": "v"})
	if a != b {
		t.Errorf("same input produced different ids: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("want 32-char id, got %d chars", len(a))
	}
}

func Test_ContentID_TrimsContent(t *testing.T) {
	t.Parallel()

	a := ContentID("  hello  ", nil)
	b := ContentID("hello", nil)
	if a != b {
		t.Error("surrounding whitespace must not change the id")
	}
}

func Test_ContentID_NilAndEmptyMetadataEqual(t *testing.T) {
	t.Parallel()

	a := ContentID("text", nil)
	b := ContentID("text", map[string]any{})
	if a != b {
		t.Error("nil and empty metadata must hash identically")
	}
}

func Test_ContentID_MetadataKeyOrderIrrelevant(t *testing.T) {
	t.Parallel()

	// Map iteration order is random in Go; repeated derivation exercises the
	// canonical serialization.
	meta := map[string]any{"alpha": "1", "beta": "2", "gamma": "3"}
	want := ContentID("text", meta)
	for range 20 {
		if got := ContentID("text", map[string]any{"gamma": "3", "alpha": "1", "beta": "2"}); got != want {
			t.Fatalf("metadata key order changed the id: %q vs %q", got, want)
		}
	}
}

func Test_SaltedID_Unique(t *testing.T) {
	t.Parallel()

	a := SaltedID("same", nil)
	b := SaltedID("same", nil)
	if a == b {
		t.Error("salted ids for identical input must differ")
	}
}

func Test_UUIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := ContentID("round trip", nil)
	u := IDToUUID(id)
	if len(u) != 36 {
		t.Fatalf("want canonical uuid length 36, got %d (%q)", len(u), u)
	}
	if got := UUIDToID(u); got != id {
		t.Errorf("round trip lost the id: %q vs %q", got, id)
	}
}

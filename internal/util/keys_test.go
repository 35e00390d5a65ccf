package util

import "testing"

func TestKeyReplacesSeparators(t *testing.T) {
	got := Key("lesson_vision_analysis", "doc:a", "7")
	want := "lesson_vision_analysis:doc_a:7"
	if got != want {
		t.Fatalf("Key=%q want %q", got, want)
	}
}

func TestDigestStableAndShort(t *testing.T) {
	a, b := Digest("k"), Digest("k")
	if a != b {
		t.Fatalf("digest not stable: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("digest len=%d want 16", len(a))
	}
	if Digest("k2") == a {
		t.Fatalf("different inputs produced same digest")
	}
}

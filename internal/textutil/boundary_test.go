package textutil

import "testing"

func TestIsCompleteSentence(t *testing.T) {
	cases := map[string]bool{
		"Hello world.":  true,
		"Dr. Smith":     false,
		"How are you?":  true,
		"no punctuation": false,
		"":               false,
	}
	for text, want := range cases {
		if got := IsCompleteSentence(text); got != want {
			t.Errorf("IsCompleteSentence(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestCommaSplitter_ProtectsBoldSpan(t *testing.T) {
	head, rest := CommaSplitter("Well, this is **bold, emphasis**, right.")
	if head != "Well," {
		t.Errorf("head = %q, want %q", head, "Well,")
	}
	if rest != "this is **bold, emphasis**, right." {
		t.Errorf("rest = %q", rest)
	}
}

func TestCommaSplitter_SkipsHeadingLine(t *testing.T) {
	head, rest := CommaSplitter("# Section, title\nbody")
	if head != "# Section, title\nbody" || rest != "" {
		t.Errorf("expected no split on heading line, got head=%q rest=%q", head, rest)
	}
}

func TestCommaSplitter_DigitSequenceProtected(t *testing.T) {
	head, rest := CommaSplitter("items 1, 2, 3 done")
	if head != "items 1, 2, 3 done" || rest != "" {
		t.Errorf("expected digit sequence to stay unsplit, got head=%q rest=%q", head, rest)
	}
}

func TestCommaSplitter_EnumeratorAfterCommaSplits(t *testing.T) {
	head, rest := CommaSplitter("first step, 2. second step")
	if head != "first step," {
		t.Errorf("head = %q", head)
	}
	if rest != "2. second step" {
		t.Errorf("rest = %q", rest)
	}
}

func TestSegmentByRegex(t *testing.T) {
	sentences, remaining := SegmentByRegex("Hello world. How are you")
	if len(sentences) != 1 || sentences[0] != "Hello world." {
		t.Errorf("sentences = %v", sentences)
	}
	if remaining != "How are you" {
		t.Errorf("remaining = %q", remaining)
	}
}

func TestSegmentByRegex_SkipsAbbreviation(t *testing.T) {
	sentences, remaining := SegmentByRegex("Dr. Smith arrived. He sat down")
	if len(sentences) != 1 || sentences[0] != "Dr. Smith arrived." {
		t.Errorf("sentences = %v", sentences)
	}
	if remaining != "He sat down" {
		t.Errorf("remaining = %q", remaining)
	}
}

func TestMergeIsolatedEnumerators(t *testing.T) {
	got := MergeIsolatedEnumerators([]string{"content,", "1.", "first step"})
	want := []string{"content,", "1. first step"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStripTrailingPunctuation(t *testing.T) {
	got := StripTrailingPunctuation([]string{"你好。", "hello.", "再见，"})
	want := []string{"你好", "hello.", "再见"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProtectRestoreLaTeX(t *testing.T) {
	protected, placeholders := ProtectLaTeX("The formula $x^2+1$ equals y.")
	if protected == "The formula $x^2+1$ equals y." {
		t.Fatalf("expected formula to be replaced by placeholder")
	}
	restored := RestoreLaTeX([]string{protected}, placeholders)
	if restored[0] != "The formula $x^2+1$ equals y." {
		t.Errorf("restored = %q", restored[0])
	}
}

func TestSegmentText_S1(t *testing.T) {
	sentences, remaining := SegmentText("Hello wor")
	if len(sentences) != 0 || remaining != "Hello wor" {
		t.Fatalf("unexpected first fragment result: %v / %q", sentences, remaining)
	}

	sentences, remaining = SegmentText("Hello world. How are you?")
	want := []string{"Hello world.", "How are you?"}
	if len(sentences) != 2 || sentences[0] != want[0] || sentences[1] != want[1] {
		t.Errorf("sentences = %v", sentences)
	}
	if remaining != "" {
		t.Errorf("remaining = %q, want empty", remaining)
	}
}

package conversation

import "testing"

func TestNoiseFilter_IsNoiseOnly(t *testing.T) {
	f := NewNoiseFilter(nil)

	noisy := []string{"。", ".", "，", ",", "!", "?", "嗯", "啊", "哦", "呃"}
	for _, s := range noisy {
		if !f.IsNoiseOnly(s) {
			t.Errorf("IsNoiseOnly(%q) = false, want true", s)
		}
	}

	if f.IsNoiseOnly("hello") {
		t.Error("IsNoiseOnly(\"hello\") = true, want false")
	}
	if f.IsNoiseOnly("嗯嗯") {
		t.Error("IsNoiseOnly on a non-exact match should be false")
	}
}

func TestNoiseFilter_Screen(t *testing.T) {
	f := NewNoiseFilter(nil)

	tests := []struct {
		name      string
		input     string
		wantOK    bool
		wantClean string
	}{
		{"empty", "", false, ""},
		{"whitespace only", "   ", false, ""},
		{"noise token", "嗯", false, ""},
		{"noise token with padding", "  。  ", false, ""},
		{"filler only", "um uh like", false, ""},
		{"meaningful with filler", "um what is the weather", true, "what is the weather"},
		{"meaningful clean", "what time is it", true, "what time is it"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned, ok := f.Screen(tt.input)
			if ok != tt.wantOK {
				t.Errorf("Screen(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && cleaned != tt.wantClean {
				t.Errorf("Screen(%q) = %q, want %q", tt.input, cleaned, tt.wantClean)
			}
		})
	}
}

func TestNoiseFilter_AddRemoveFillerWord(t *testing.T) {
	f := NewNoiseFilter([]string{"um"})

	cleaned, _ := f.Clean("um foo bar")
	if cleaned != "foo bar" {
		t.Errorf("expected 'foo bar', got %q", cleaned)
	}

	f.AddFillerWord("baz")
	cleaned, _ = f.Clean("baz foo bar")
	if cleaned != "foo bar" {
		t.Errorf("after AddFillerWord, expected 'foo bar', got %q", cleaned)
	}

	f.RemoveFillerWord("um")
	cleaned, _ = f.Clean("um foo bar")
	if cleaned != "um foo bar" {
		t.Errorf("after RemoveFillerWord, expected 'um foo bar', got %q", cleaned)
	}
}

func TestNoiseFilter_CaseInsensitive(t *testing.T) {
	f := NewNoiseFilter(nil)
	cleaned, has := f.Clean("UM what is UH the weather")
	if !has || cleaned != "what is the weather" {
		t.Errorf("Clean() = %q, %v", cleaned, has)
	}
}

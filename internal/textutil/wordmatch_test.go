package textutil

import "testing"

func TestWordMatcher_DirectMatch(t *testing.T) {
	m := NewWordMatcher([]string{"stop"}, false)
	word, ok := m.Match("please stop now")
	if !ok || word != "stop" {
		t.Fatalf("Match() = %q, %v", word, ok)
	}
}

func TestWordMatcher_NoMatch(t *testing.T) {
	m := NewWordMatcher([]string{"stop"}, false)
	if _, ok := m.Match("keep going"); ok {
		t.Fatal("expected no match")
	}
}

func TestWordMatcher_PinyinFuzzy(t *testing.T) {
	m := NewWordMatcher([]string{"你好"}, true)
	word, ok := m.Match("nihao there")
	if !ok || word != "你好" {
		t.Fatalf("Match() = %q, %v", word, ok)
	}
}

func TestStripWakeWordPrefix(t *testing.T) {
	got := StripWakeWordPrefix("hey assistant, what's the weather", "hey assistant")
	want := "what's the weather"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

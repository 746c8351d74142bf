package moderation

import "testing"

func TestFilter(t *testing.T) {
	f := New(true)
	tests := []struct {
		in   string
		want bool
	}{
		{"recommend a shit book", true},
		{"recommend a book about friendship and magic", false},
		{"something by Dickens", false},
		{"poems by Emily Dickinson", false},
		{"a whaling story like Moby-Dick", false},
		{"something by Dickens, you dick", true},
	}
	for _, tt := range tests {
		if got := f.Contains(tt.in); got != tt.want {
			t.Errorf("Contains(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFilter_AllowPhrases(t *testing.T) {
	in := "the summary of Cock and Bull"
	if !New(true).Contains(in) {
		t.Fatalf("Contains(%q): expected the default dictionary to flag it", in)
	}
	if New(true, "Cock-and-Bull").Contains(in) {
		t.Errorf("Contains(%q): allowed title still flagged", in)
	}
	if !New(true, "Cock-and-Bull").Contains("cock") {
		t.Error("allowing a title hid a bare profanity")
	}
}

func TestFilter_Disabled(t *testing.T) {
	if New(false).Contains("shit") {
		t.Error("disabled filter flagged input")
	}
	var f *Filter
	if f.Contains("shit") {
		t.Error("nil filter flagged input")
	}
}

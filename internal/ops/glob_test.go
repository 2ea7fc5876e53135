package ops

import "testing"

// TestGlobStarMatchesEverything checks Match("*", s) == true for all s.
func TestGlobStarMatchesEverything(t *testing.T) {
	for _, s := range []string{"", "a", "abc", "a.b.c", "   "} {
		if !Match("*", s) {
			t.Fatalf("Match(%q, %q) = false, want true", "*", s)
		}
	}
}

// TestGlobEmptyNameOnlyMatchesAllStarPattern checks
// Match(p, "") == true iff p consists only of '*'.
func TestGlobEmptyNameOnlyMatchesAllStarPattern(t *testing.T) {
	cases := []struct {
		pattern string
		want    bool
	}{
		{"", true},
		{"*", true},
		{"**", true},
		{"***", true},
		{"a", false},
		{"a*", false},
		{"*a", false},
		{"?", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, ""); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, "", got, c.want)
		}
	}
}

// TestGlobQuestionMark checks '?' consumes exactly one byte: "?x" matches
// "ax" but not "x".
func TestGlobQuestionMark(t *testing.T) {
	if !Match("?x", "ax") {
		t.Fatal(`Match("?x", "ax") = false, want true`)
	}
	if Match("?x", "x") {
		t.Fatal(`Match("?x", "x") = true, want false`)
	}
}

func TestGlobCharacterClass(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"[abc].txt", "a.txt", true},
		{"[abc].txt", "d.txt", false},
		{"[a-z].txt", "m.txt", true},
		{"[a-z].txt", "M.txt", false},
		{"[!a-z].txt", "M.txt", true},
		{"[^abc]x", "dx", true},
		{"[^abc]x", "ax", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.name); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

func TestGlobBacktrackOverMultipleStars(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*.txt", "a.b.c.txt", true},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxbyy", false},
		{"*foo*", "xxfooxx", true},
		{"*foo*", "xxbarxx", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.name); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

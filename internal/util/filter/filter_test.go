package filter

import (
	"reflect"
	"testing"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config Config
		want   bool
	}{
		{"no filter", "/shop/cover.png", Config{}, true},
		{"include hit", "/shop/cover.png", Config{Include: []string{"*.png"}}, true},
		{"include miss", "/shop/notes.txt", Config{Include: []string{"*.png", "*.jpg"}}, false},
		{"exclude wins over include", "/shop/cover.png", Config{Include: []string{"*.png"}, Exclude: []string{"cover*"}}, false},
		{"exclude path with double star", "/shop/drafts/v2/cover.png", Config{Exclude: []string{"**/drafts/**"}}, false},
		{"exclude path elsewhere", "/shop/final/cover.png", Config{Exclude: []string{"**/drafts/**"}}, true},
		{"search all terms", "/shop/Final-Cover.png", Config{Search: []string{"final", "cover"}}, true},
		{"search missing term", "/shop/Final-Cover.png", Config{Search: []string{"final", "banner"}}, false},
		{"search ignores directories", "/final/cover.png", Config{Search: []string{"final"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.path, tt.config); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestMatchDoubleStarPattern(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"cover.png", "**/cover.png", true},
		{"a/b/c/cover.png", "**/cover.png", true},
		{"a/b/c/other.png", "**/cover.png", false},
		{"exports/a/b/file.zip", "exports/**", true},
		{"imports/file.zip", "exports/**", false},
		{"shop/x/y/final.zip", "shop/**/final.zip", true},
		{"shop/final.zip", "shop/**/final.zip", true},
		{"anything/at/all", "**", true},
	}
	for _, tt := range tests {
		if got := matchDoubleStarPattern(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchDoubleStarPattern(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

func TestApplyKeepsOrder(t *testing.T) {
	paths := []string{"/a/3.png", "/a/1.psd", "/a/2.png"}
	got := Apply(paths, Config{Exclude: []string{"*.psd"}})
	if want := []string{"/a/3.png", "/a/2.png"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}
}

func TestParsePatternList(t *testing.T) {
	got := ParsePatternList(" *.png, ,*.jpg ")
	if want := []string{"*.png", "*.jpg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ParsePatternList() = %v, want %v", got, want)
	}
	if ParsePatternList("") != nil {
		t.Error("ParsePatternList(\"\") should be nil")
	}
}

package parser

import (
	"path/filepath"
	"slices"
	"testing"
)

func TestParseSubmodules_Empty(t *testing.T) {
	t.Parallel()

	got, err := ParseSubmodules("")
	if err != nil {
		t.Fatalf("ParseSubmodules() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("ParseSubmodules(\"\") = %#v, want empty", got)
	}
}

func TestParseSubmodules(t *testing.T) {
	t.Parallel()

	in := "[submodule \"test1\"]\npath = /path/to/sub1\nurl = http://example1.com\nupdate = checkout\n" +
		"branch = master\nfetchRecurseSubmodules = true\nignore = all\n" +
		"[submodule  \"test2\"]\n\npath   ==/path/to/sub2\nurl= git://example2.com"

	got, err := ParseSubmodules(in)
	if err != nil {
		t.Fatalf("ParseSubmodules() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ParseSubmodules() returned %d entries, want 2", len(got))
	}

	first := got[0]
	if first.Name != "test1" {
		t.Fatalf("name = %q, want test1", first.Name)
	}
	if want := filepath.Join(string(filepath.Separator), "path", "to", "sub1"); first.Path != want {
		t.Fatalf("path = %q, want %q", first.Path, want)
	}
	if first.URL != "http://example1.com" || first.Update != "checkout" || first.Branch != "master" ||
		first.FetchRecurseSubmodules != "true" || first.Ignore != "all" {
		t.Fatalf("unexpected fields: %+v", first)
	}
	wantKeys := []string{"path", "url", "update", "branch", "fetchRecurseSubmodules", "ignore"}
	var keys []string
	for _, opt := range first.Options {
		keys = append(keys, opt.Key)
	}
	if !slices.Equal(keys, wantKeys) {
		t.Fatalf("option order = %q, want %q", keys, wantKeys)
	}

	second := got[1]
	if second.Name != "test2" {
		t.Fatalf("name = %q, want test2", second.Name)
	}
	if want := filepath.Join("=", "path", "to", "sub2"); second.Path != want {
		t.Fatalf("path = %q, want %q", second.Path, want)
	}
	if second.RawPath != "=/path/to/sub2" {
		t.Fatalf("raw path = %q", second.RawPath)
	}
	if second.URL != "http://example2.com" || second.RawURL != "git://example2.com" {
		t.Fatalf("url = %q raw = %q", second.URL, second.RawURL)
	}
}

func TestParseSubmodules_EmptyPath(t *testing.T) {
	t.Parallel()

	got, err := ParseSubmodules("[submodule \"blank\"]\npath =\nurl = http://example.com\n")
	if err != nil {
		t.Fatalf("ParseSubmodules() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ParseSubmodules() returned %d entries, want 1", len(got))
	}
	if got[0].Path != "" || got[0].RawPath != "" {
		t.Fatalf("path = %q raw = %q, want both empty", got[0].Path, got[0].RawPath)
	}
}

func TestNormalizeSubmoduleURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "https://example.com/a.git", want: "https://example.com/a.git"},
		{in: "git://example.com/a.git", want: "http://example.com/a.git"},
		{in: "git@github.com:owner/repo.git", want: "http://github.com/owner/repo.git"},
		{in: "../relative.git", want: "../relative.git"},
	}
	for _, tt := range tests {
		if got := normalizeSubmoduleURL(tt.in); got != tt.want {
			t.Fatalf("normalizeSubmoduleURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

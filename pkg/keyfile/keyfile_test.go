package keyfile

import "testing"

const sample = `
[core]
mode = archive

[remote "origin"]
url = https://example.com/repo
branches = main, release-1.0
`

func TestParseAndGet(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mode, ok := f.Get("core", "", "mode")
	if !ok || mode != "archive" {
		t.Fatalf("core.mode = %q, %v", mode, ok)
	}
	url, ok := f.Get("remote", "origin", "url")
	if !ok || url != "https://example.com/repo" {
		t.Fatalf("remote.origin.url = %q, %v", url, ok)
	}
	branches, ok := f.GetList("remote", "origin", "branches", ",")
	if !ok || len(branches) != 2 || branches[1] != "release-1.0" {
		t.Fatalf("branches = %v, %v", branches, ok)
	}
}

func TestMissingSection(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := f.Get("remote", "upstream", "url"); ok {
		t.Fatalf("expected missing section to be absent")
	}
}

func TestMalformedLineRejected(t *testing.T) {
	if _, err := Parse([]byte("[core]\nno-equals-here\n")); err == nil {
		t.Fatalf("expected error for line without '='")
	}
	if _, err := Parse([]byte("[unterminated\nkey = value\n")); err == nil {
		t.Fatalf("expected error for unterminated section header")
	}
	if _, err := Parse([]byte("key = value\n")); err == nil {
		t.Fatalf("expected error for key outside section")
	}
}

func TestLastAssignmentWins(t *testing.T) {
	f, err := Parse([]byte("[core]\nmode = archive\nmode = bare\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mode, _ := f.Get("core", "", "mode")
	if mode != "bare" {
		t.Fatalf("expected last assignment to win, got %q", mode)
	}
}

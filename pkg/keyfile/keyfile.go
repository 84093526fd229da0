// Package keyfile parses the git/ostree-style key-file grammar used both
// by local repo configuration and by a remote's fetched "/config" body:
// "[section]" or "[section "subsection"]" headers followed by "key = value"
// lines.
package keyfile

import (
	"bufio"
	"fmt"
	"strings"
)

// File is a parsed key-file: an ordered set of sections, each holding an
// ordered set of key/value lines (repeated keys are preserved in order, but
// Get and GetList read only the last one). A list-valued key such as
// "branches = main, release" is a single separated value split by GetList.
type File struct {
	sections []section
}

type section struct {
	name string // "remote \"origin\"" rendered exactly as the header, minus brackets
	kv   []kv
}

type kv struct {
	key, value string
}

// sectionKey builds the lookup key for a section, matching the header
// grammar: name alone, or `name "sub"`.
func sectionKey(name, sub string) string {
	if sub == "" {
		return name
	}
	return fmt.Sprintf("%s %q", name, sub)
}

// Parse parses key-file text. Malformed lines (no '=' in a key line,
// unterminated section header) are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	var cur *section
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("keyfile: line %d: unterminated section header %q", lineNo, line)
			}
			inner := line[1 : len(line)-1]
			f.sections = append(f.sections, section{name: inner})
			cur = &f.sections[len(f.sections)-1]
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("keyfile: line %d: key outside any section", lineNo)
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return nil, fmt.Errorf("keyfile: line %d: missing '=' in %q", lineNo, line)
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if key == "" {
			return nil, fmt.Errorf("keyfile: line %d: empty key", lineNo)
		}
		cur.kv = append(cur.kv, kv{key: key, value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("keyfile: scan: %w", err)
	}
	return f, nil
}

func (f *File) find(name, sub string) *section {
	want := sectionKey(name, sub)
	for i := range f.sections {
		if f.sections[i].name == want {
			return &f.sections[i]
		}
	}
	return nil
}

// Get returns the last value assigned to key within section name["sub"].
// A later assignment of the same key overrides an earlier one, matching
// typical key-file semantics.
func (f *File) Get(name, sub, key string) (string, bool) {
	sec := f.find(name, sub)
	if sec == nil {
		return "", false
	}
	found := false
	var value string
	for _, e := range sec.kv {
		if e.key == key {
			value = e.value
			found = true
		}
	}
	return value, found
}

// GetList returns key's value split on sep, with surrounding whitespace
// trimmed from each element and empty elements dropped. Used for
// "branches = main, release"-style list values.
func (f *File) GetList(name, sub, key, sep string) ([]string, bool) {
	raw, ok := f.Get(name, sub, key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(raw, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out, true
}

// HasSection reports whether section name["sub"] appears at all.
func (f *File) HasSection(name, sub string) bool {
	return f.find(name, sub) != nil
}

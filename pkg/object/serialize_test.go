package object

import (
	"bytes"
	"strings"
	"testing"
)

func TestCommitRoundTrip(t *testing.T) {
	c := &CommitRecord{
		TreeContentsHash: Hash(strings.Repeat("a", 64)),
		TreeMetaHash:     Hash(strings.Repeat("b", 64)),
		Related:          []RelatedCommit{{Name: "prev", Hash: "deadbeef"}},
		Extra:            []ExtraField{{Key: "subject", Value: "initial import"}},
	}
	encoded := MarshalCommit(c)
	got, err := UnmarshalCommit(encoded)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TreeContentsHash != c.TreeContentsHash || got.TreeMetaHash != c.TreeMetaHash {
		t.Fatalf("checksum mismatch: %+v", got)
	}
	if len(got.Related) != 1 || got.Related[0].Hash != "deadbeef" {
		t.Fatalf("related mismatch: %+v", got.Related)
	}
	if len(got.Extra) != 1 || got.Extra[0].Value != "initial import" {
		t.Fatalf("extra mismatch: %+v", got.Extra)
	}
}

func TestCommitMissingFieldsRejected(t *testing.T) {
	if _, err := UnmarshalCommit([]byte("tree_contents abc\n\n")); err == nil {
		t.Fatalf("expected error for missing tree_meta")
	}
}

func TestDirTreeRoundTrip(t *testing.T) {
	tr := &DirTreeRecord{
		Files: []FileEntry{{Name: "a.txt", Hash: "f1"}, {Name: "b.txt", Hash: "f2"}},
		Dirs:  []DirEntry{{Name: "sub", TreeHash: "t1", MetaHash: "m1"}},
	}
	encoded := MarshalDirTree(tr)
	got, err := UnmarshalDirTree(encoded)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Files) != 2 || len(got.Dirs) != 1 {
		t.Fatalf("unexpected shape: %+v", got)
	}
	if got.Dirs[0].TreeHash != "t1" || got.Dirs[0].MetaHash != "m1" {
		t.Fatalf("dir entry mismatch: %+v", got.Dirs[0])
	}
}

func TestContentStreamRoundTrip(t *testing.T) {
	c := &ContentRecord{
		Info:    FileInfo{Mode: 0o644, Size: 5, MTime: 1700000000},
		Xattrs:  []Xattr{{Name: "user.foo", Value: []byte("bar")}},
		Payload: []byte("hello"),
	}
	encoded := EncodeContentStream(c)
	got, err := ParseContentStream(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Info != c.Info {
		t.Fatalf("info mismatch: %+v", got.Info)
	}
	if !bytes.Equal(got.Payload, c.Payload) {
		t.Fatalf("payload mismatch: %q", got.Payload)
	}
	if len(got.Xattrs) != 1 || got.Xattrs[0].Name != "user.foo" {
		t.Fatalf("xattr mismatch: %+v", got.Xattrs)
	}
}

func TestContentStreamSizeMismatchRejected(t *testing.T) {
	c := &ContentRecord{Info: FileInfo{Mode: 0o644, Size: 99, MTime: 0}, Payload: []byte("short")}
	encoded := EncodeContentStream(c)
	if _, err := ParseContentStream(encoded); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func TestValidFilename(t *testing.T) {
	bad := []string{"", ".", "..", "a/b", "a\x00b"}
	for _, name := range bad {
		if ValidFilename(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
	good := []string{"a", "file.txt", "..hidden"}
	for _, name := range good {
		if !ValidFilename(name) {
			t.Errorf("expected %q to be accepted", name)
		}
	}
}

func TestHashObjectDeterministic(t *testing.T) {
	h1 := HashObject(KindFile, []byte("hello"))
	h2 := HashObject(KindFile, []byte("hello"))
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %s vs %s", h1, h2)
	}
	if HashObject(KindDirMeta, []byte("hello")) == h1 {
		t.Fatalf("expected kind to affect hash")
	}
}

func TestRelativePath(t *testing.T) {
	n := Name{Hash: "abcdef0123456789", Kind: KindFile}
	got := RelativePath(n)
	want := "objects/file/ab/cdef0123456789"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

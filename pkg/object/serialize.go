package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Text envelope convention (shared across record kinds, grounded on the
// teacher's pkg/object/serialize.go): a sequence of "key value...\n" header
// lines, a blank line, then an optional body.

func splitHeaderBody(data []byte) (header []string, body []byte, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	consumed := 0
	for scanner.Scan() {
		line := scanner.Text()
		consumed += len(line) + 1
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("object: scan header: %w", err)
	}
	if consumed > len(data) {
		consumed = len(data)
	}
	return lines, data[consumed:], nil
}

func hashOrDash(h Hash) string {
	if h == "" {
		return "-"
	}
	return string(h)
}

func dashOrHash(s string) Hash {
	if s == "-" {
		return ""
	}
	return Hash(s)
}

// MarshalCommit encodes a CommitRecord into its text envelope.
func MarshalCommit(c *CommitRecord) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "tree_contents %s\n", hashOrDash(c.TreeContentsHash))
	fmt.Fprintf(&b, "tree_meta %s\n", hashOrDash(c.TreeMetaHash))
	for _, r := range c.Related {
		fmt.Fprintf(&b, "related %s %s\n", r.Name, r.Hash)
	}
	for _, e := range c.Extra {
		fmt.Fprintf(&b, "extra %s %s\n", e.Key, e.Value)
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// UnmarshalCommit parses a CommitRecord from its text envelope.
func UnmarshalCommit(data []byte) (*CommitRecord, error) {
	lines, _, err := splitHeaderBody(data)
	if err != nil {
		return nil, err
	}
	c := &CommitRecord{}
	sawTreeContents, sawTreeMeta := false, false
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "tree_contents":
			if len(fields) != 2 {
				return nil, fmt.Errorf("object: malformed tree_contents line %q", line)
			}
			c.TreeContentsHash = dashOrHash(fields[1])
			sawTreeContents = true
		case "tree_meta":
			if len(fields) != 2 {
				return nil, fmt.Errorf("object: malformed tree_meta line %q", line)
			}
			c.TreeMetaHash = dashOrHash(fields[1])
			sawTreeMeta = true
		case "related":
			if len(fields) != 3 {
				return nil, fmt.Errorf("object: malformed related line %q", line)
			}
			c.Related = append(c.Related, RelatedCommit{Name: fields[1], Hash: Hash(fields[2])})
		case "extra":
			if len(fields) < 2 {
				return nil, fmt.Errorf("object: malformed extra line %q", line)
			}
			c.Extra = append(c.Extra, ExtraField{Key: fields[1], Value: strings.TrimPrefix(line, "extra "+fields[1]+" ")})
		default:
			return nil, fmt.Errorf("object: unknown commit header %q", fields[0])
		}
	}
	if !sawTreeContents || !sawTreeMeta {
		return nil, fmt.Errorf("object: commit record missing tree_contents/tree_meta")
	}
	return c, nil
}

// MarshalDirTree encodes a DirTreeRecord into its text envelope. Entries
// are emitted in the order supplied by the caller; the pull engine only
// ever unmarshals trees fetched from a remote, it never authors them, so no
// canonical sort is imposed here.
func MarshalDirTree(t *DirTreeRecord) []byte {
	var b strings.Builder
	for _, f := range t.Files {
		fmt.Fprintf(&b, "file %s %s\n", f.Name, f.Hash)
	}
	for _, d := range t.Dirs {
		fmt.Fprintf(&b, "dir %s %s %s\n", d.Name, hashOrDash(d.TreeHash), hashOrDash(d.MetaHash))
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// UnmarshalDirTree parses a DirTreeRecord from its text envelope.
func UnmarshalDirTree(data []byte) (*DirTreeRecord, error) {
	lines, _, err := splitHeaderBody(data)
	if err != nil {
		return nil, err
	}
	t := &DirTreeRecord{}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "file":
			if len(fields) != 3 {
				return nil, fmt.Errorf("object: malformed file line %q", line)
			}
			t.Files = append(t.Files, FileEntry{Name: fields[1], Hash: Hash(fields[2])})
		case "dir":
			if len(fields) != 4 {
				return nil, fmt.Errorf("object: malformed dir line %q", line)
			}
			t.Dirs = append(t.Dirs, DirEntry{Name: fields[1], TreeHash: dashOrHash(fields[2]), MetaHash: dashOrHash(fields[3])})
		default:
			return nil, fmt.Errorf("object: unknown dirtree header %q", fields[0])
		}
	}
	return t, nil
}

// MarshalDirMeta encodes a DirMetaRecord. DirMeta is an opaque leaf per
// spec.md §3: the body is stored verbatim, with no header at all.
func MarshalDirMeta(m *DirMetaRecord) []byte {
	return append([]byte(nil), m.Data...)
}

// UnmarshalDirMeta wraps an opaque body as a DirMetaRecord.
func UnmarshalDirMeta(data []byte) (*DirMetaRecord, error) {
	return &DirMetaRecord{Data: append([]byte(nil), data...)}, nil
}

// EncodeContentStream renders a ContentRecord into the canonical byte
// stream the fetcher downloads and the store stages: a header line, an
// xattr block, a blank line, then the raw payload.
func EncodeContentStream(c *ContentRecord) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "mode %d size %d mtime %d\n", c.Info.Mode, c.Info.Size, c.Info.MTime)
	fmt.Fprintf(&b, "xattr %d\n", len(c.Xattrs))
	for _, x := range c.Xattrs {
		fmt.Fprintf(&b, "%d %s %d\n", len(x.Name), x.Name, len(x.Value))
		b.Write(x.Value)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.Write(c.Payload)
	return b.Bytes()
}

// ParseContentStream splits a fetched content body into file-info,
// extended attributes, and payload, per spec.md §3's "content-parse-then-
// stage pipeline" and §4.3's "splitting payload, file-info, and extended
// attributes".
func ParseContentStream(data []byte) (*ContentRecord, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	headerLine, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("object: read content header: %w", err)
	}
	var mode uint32
	var size, mtime int64
	if _, err := fmt.Sscanf(headerLine, "mode %d size %d mtime %d", &mode, &size, &mtime); err != nil {
		return nil, fmt.Errorf("object: malformed content header %q: %w", headerLine, err)
	}

	xattrLine, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("object: read xattr count: %w", err)
	}
	var count int
	if _, err := fmt.Sscanf(xattrLine, "xattr %d", &count); err != nil {
		return nil, fmt.Errorf("object: malformed xattr count %q: %w", xattrLine, err)
	}
	if count < 0 {
		return nil, fmt.Errorf("object: negative xattr count")
	}

	xattrs := make([]Xattr, 0, count)
	for i := 0; i < count; i++ {
		line, err := readLine(r)
		if err != nil {
			return nil, fmt.Errorf("object: read xattr %d: %w", i, err)
		}
		var nameLen, valueLen int
		var name string
		if _, err := fmt.Sscanf(line, "%d %s %d", &nameLen, &name, &valueLen); err != nil {
			return nil, fmt.Errorf("object: malformed xattr line %q: %w", line, err)
		}
		if len(name) != nameLen {
			return nil, fmt.Errorf("object: xattr name length mismatch in %q", line)
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, fmt.Errorf("object: read xattr value %d: %w", i, err)
		}
		if _, err := r.ReadByte(); err != nil {
			return nil, fmt.Errorf("object: read xattr trailing newline %d: %w", i, err)
		}
		xattrs = append(xattrs, Xattr{Name: name, Value: value})
	}

	if _, err := readLine(r); err != nil {
		return nil, fmt.Errorf("object: read blank separator: %w", err)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("object: read payload: %w", err)
	}
	if int64(len(payload)) != size && size >= 0 {
		return nil, fmt.Errorf("object: content payload length %d does not match declared size %d", len(payload), size)
	}

	return &ContentRecord{
		Info:    FileInfo{Mode: mode, Size: size, MTime: mtime},
		Xattrs:  xattrs,
		Payload: payload,
	}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\n"), nil
}


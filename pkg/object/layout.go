package object

import "fmt"

// RelativePath returns the canonical object layout path for name: a
// two-character fanout directory under a per-kind subtree. This is the
// "relative object path" spec.md §6 requires the local store and the
// remote to agree on — the remote serves object bodies at
// "/{RelativePath}" and the local store mirrors the same layout on disk.
func RelativePath(name Name) string {
	csum := string(name.Hash)
	if len(csum) < 3 {
		// Malformed input (caller should have validated); fall back to a
		// flat layout rather than panicking on a slice out of range.
		return fmt.Sprintf("objects/%s/%s", name.Kind, csum)
	}
	return fmt.Sprintf("objects/%s/%s/%s", name.Kind, csum[:2], csum[2:])
}

package pull

import "github.com/odvcencio/ostpull/pkg/object"

// Tag discriminates the five message variants of spec.md §4.1.
type Tag int

const (
	// TagScan: to_scan. Recurse this already-staged metadata object.
	TagScan Tag = iota
	// TagFetch: to_fetch. Fetch this object from the remote.
	TagFetch
	// TagScanIdle: to_fetch. The scan queue drained this turn.
	TagScanIdle
	// TagMainIdle: to_scan (request) and to_fetch (reply). Quiescence token.
	TagMainIdle
	// TagQuit: to_scan. Shutdown.
	TagQuit
)

// Message is the discriminated union carried on both to_scan and to_fetch.
type Message struct {
	Tag    Tag
	Name   object.Name // TagScan, TagFetch
	Serial uint32      // TagMainIdle
}

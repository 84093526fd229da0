package pull

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/odvcencio/ostpull/pkg/object"
	"github.com/odvcencio/ostpull/pkg/store"
)

// maxRecursion guards against malicious or cyclic graphs, spec.md §3.
const maxRecursion = 256

// scanWorker is the single-threaded cooperative loop owning the dedup
// tables. It never shares mutable state with mainLoop except through the
// two queues and nScannedMetadata.
type scanWorker struct {
	store         *store.Store
	followRelated bool

	scannedMetadata   map[object.Name]bool
	requestedMetadata map[object.Hash]bool
	requestedContent  map[object.Hash]bool

	toFetch          *Queue[Message]
	nScannedMetadata *atomic.Uint64

	errs chan error // buffered 1; first error wins
}

func newScanWorker(s *store.Store, toFetch *Queue[Message], nScanned *atomic.Uint64, followRelated bool) *scanWorker {
	return &scanWorker{
		store:             s,
		followRelated:     followRelated,
		scannedMetadata:   make(map[object.Name]bool),
		requestedMetadata: make(map[object.Hash]bool),
		requestedContent:  make(map[object.Hash]bool),
		toFetch:           toFetch,
		nScannedMetadata:  nScanned,
		errs:              make(chan error, 1),
	}
}

// Run drains toScan until it sees TagQuit or ctx is cancelled. Grounded on
// original_source/ostree-pull.c's on_metadata_objects_to_scan_ready: drain
// everything currently queued, always emit SCAN_IDLE at the end of the
// drain, and forward only the last MAIN_IDLE token seen this turn.
func (w *scanWorker) Run(ctx context.Context, toScan *Queue[Message]) {
	for {
		select {
		case <-toScan.Ready():
			var pendingIdle *uint32
			for {
				msg, ok := toScan.TryPop()
				if !ok {
					break
				}
				switch msg.Tag {
				case TagQuit:
					return
				case TagScan:
					if err := w.classify(msg.Name, 0); err != nil {
						w.reportError(err)
						return
					}
				case TagMainIdle:
					s := msg.Serial
					pendingIdle = &s
				}
			}
			w.toFetch.Push(Message{Tag: TagScanIdle})
			if pendingIdle != nil {
				w.toFetch.Push(Message{Tag: TagMainIdle, Serial: *pendingIdle})
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *scanWorker) reportError(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// classify implements spec.md §4.2's Classify algorithm.
func (w *scanWorker) classify(name object.Name, depth int) error {
	if depth > maxRecursion {
		return fmt.Errorf("%s: recursion depth %d exceeds limit: %w", name, depth, ErrStructural)
	}
	if name.Kind == object.KindFile {
		return fmt.Errorf("classify called with FILE object %s (unreachable): %w", name, ErrStructural)
	}
	if w.scannedMetadata[name] {
		return nil
	}

	isRequested := w.requestedMetadata[name.Hash]
	isStored, err := w.store.HasObject(name)
	if err != nil {
		return fmt.Errorf("classify %s: %w", name, err)
	}

	if !isStored && !isRequested {
		w.requestedMetadata[name.Hash] = true
		w.toFetch.Push(Message{Tag: TagFetch, Name: name})
		return nil
	}
	if !isStored {
		// Already requested earlier this run; the eventual fetch
		// completion will post a fresh SCAN once staged.
		return nil
	}

	body, err := w.store.LoadVariant(name)
	if err != nil {
		return fmt.Errorf("classify %s: %w", name, err)
	}

	switch name.Kind {
	case object.KindCommit:
		c, err := object.UnmarshalCommit(body)
		if err != nil {
			return fmt.Errorf("classify %s: %w", name, fmt.Errorf("%w: %v", ErrValidation, err))
		}
		if c.TreeContentsHash != "" {
			if err := w.classify(object.Name{Hash: c.TreeContentsHash, Kind: object.KindDirTree}, depth+1); err != nil {
				return err
			}
		}
		if c.TreeMetaHash != "" {
			if err := w.classify(object.Name{Hash: c.TreeMetaHash, Kind: object.KindDirMeta}, depth+1); err != nil {
				return err
			}
		}
		if w.followRelated {
			for _, r := range c.Related {
				if err := w.classify(object.Name{Hash: r.Hash, Kind: object.KindCommit}, depth+1); err != nil {
					return err
				}
			}
		}
		w.markScanned(name)

	case object.KindDirTree:
		t, err := object.UnmarshalDirTree(body)
		if err != nil {
			return fmt.Errorf("classify %s: %w", name, fmt.Errorf("%w: %v", ErrValidation, err))
		}
		for _, f := range t.Files {
			if !object.ValidFilename(f.Name) {
				return fmt.Errorf("classify %s: invalid filename %q: %w", name, f.Name, ErrValidation)
			}
			fileName := object.Name{Hash: f.Hash, Kind: object.KindFile}
			stored, err := w.store.HasObject(fileName)
			if err != nil {
				return fmt.Errorf("classify %s: %w", name, err)
			}
			if !stored && !w.requestedContent[f.Hash] {
				w.requestedContent[f.Hash] = true
				w.toFetch.Push(Message{Tag: TagFetch, Name: fileName})
			}
		}
		for _, d := range t.Dirs {
			if d.TreeHash != "" {
				if err := w.classify(object.Name{Hash: d.TreeHash, Kind: object.KindDirTree}, depth+1); err != nil {
					return err
				}
			}
			if d.MetaHash != "" {
				if err := w.classify(object.Name{Hash: d.MetaHash, Kind: object.KindDirMeta}, depth+1); err != nil {
					return err
				}
			}
		}
		w.markScanned(name)

	case object.KindDirMeta:
		w.markScanned(name)
	}

	return nil
}

func (w *scanWorker) markScanned(name object.Name) {
	w.scannedMetadata[name] = true
	w.nScannedMetadata.Add(1)
}

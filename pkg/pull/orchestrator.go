package pull

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/odvcencio/ostpull/pkg/fetch"
	"github.com/odvcencio/ostpull/pkg/object"
	"github.com/odvcencio/ostpull/pkg/remoteclient"
	"github.com/odvcencio/ostpull/pkg/store"
)

// archivedMode is the only remote core.mode the pull engine can fetch
// individual objects from, per spec.md §4.6 step 2 and §6.
const archivedMode = "archive"

// Options configures one orchestrator invocation, spec.md §4.6.
type Options struct {
	RemoteName string
	ConfigPath string // local repo config, holds remote "NAME" sections
	Args       []string
	Related    bool

	Store      *store.Store
	HTTPClient *http.Client
	TmpDir     string

	Concurrency int
	Logger      *log.Logger // nil disables verbose diagnostic logging
}

// RefUpdate describes one branch whose tracked checksum changed.
type RefUpdate struct {
	Branch  string
	OldHash object.Hash
	NewHash object.Hash
}

// Result summarizes a completed pull, spec.md §4.6 steps 9-10 and the
// supplemented bytes-transferred summary (see SPEC_FULL.md).
type Result struct {
	Updated          []RefUpdate
	NoChange         []string
	FetchedMetadata  int
	FetchedContent   int
	ScannedMetadata  uint64
	BytesTransferred uint64
	Elapsed          time.Duration
}

type rootSpec struct {
	name   object.Name
	branch string // "" for a raw checksum argument with no associated ref
}

// Run executes one pull invocation end to end: spec.md §4.6's ten-step
// sequence, split here into resolveRoots (the ref-fetch phase, kept
// separate from the scan/fetch queues per DESIGN.md's Open Question (b)
// decision) followed by the scan/fetch pipeline proper.
func Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	cfg, err := LoadRemoteConfig(opts.ConfigPath, opts.RemoteName)
	if err != nil {
		return nil, err
	}
	client, err := remoteclient.New(cfg.URL, opts.HTTPClient)
	if err != nil {
		return nil, err
	}

	remoteCfg, err := client.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("load remote config: %w", err)
	}
	if mode, ok := remoteCfg.Get("core", "", "mode"); !ok || mode != archivedMode {
		got := mode
		if !ok {
			got = "(unset)"
		}
		return nil, fmt.Errorf("remote %q core.mode %q is not supported, only %q is: %w", opts.RemoteName, got, archivedMode, ErrValidation)
	}

	roots, err := resolveRoots(ctx, client, cfg, opts.Args)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	var scanRoots []object.Name
	var pending []RefUpdate
	for _, r := range roots {
		if r.branch == "" {
			scanRoots = append(scanRoots, r.name)
			continue
		}
		old, err := opts.Store.ResolveRev(opts.RemoteName + "/" + r.branch)
		if err == nil && old == r.name.Hash {
			result.NoChange = append(result.NoChange, r.branch)
			continue
		}
		scanRoots = append(scanRoots, r.name)
		pending = append(pending, RefUpdate{Branch: r.branch, OldHash: old, NewHash: r.name.Hash})
	}

	if len(scanRoots) == 0 {
		result.Elapsed = time.Since(start)
		return result, nil
	}

	tx, err := opts.Store.PrepareTransaction()
	if err != nil {
		return nil, fmt.Errorf("prepare transaction: %w", err)
	}

	toScan := NewQueue[Message]()
	toFetch := NewQueue[Message]()
	var nScanned atomic.Uint64

	worker := newScanWorker(opts.Store, toFetch, &nScanned, opts.Related)
	workerDone := make(chan struct{})
	go func() {
		worker.Run(ctx, toScan)
		close(workerDone)
	}()

	fetcher := fetch.New(opts.HTTPClient, opts.TmpDir, fetch.Options{Concurrency: opts.Concurrency, AcceptZstd: true})
	ml := newMainLoop(opts.Store, fetcher, client, toScan, toFetch, worker.errs, opts.Logger)

	for _, n := range scanRoots {
		toScan.Push(Message{Tag: TagScan, Name: n})
	}
	serial := ml.prime()
	toScan.Push(Message{Tag: TagMainIdle, Serial: serial})

	runErr := ml.Run(ctx)
	<-workerDone

	if runErr != nil {
		tx.Abort()
		return nil, runErr
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	for _, ru := range pending {
		if err := opts.Store.WriteRef(opts.RemoteName, ru.Branch, ru.NewHash); err != nil {
			return nil, fmt.Errorf("write ref %s/%s: %w", opts.RemoteName, ru.Branch, err)
		}
	}

	result.Updated = pending
	result.FetchedMetadata = ml.nFetchedMetadata
	result.FetchedContent = ml.nFetchedContent
	result.ScannedMetadata = nScanned.Load()
	result.BytesTransferred = fetcher.BytesTransferred()
	result.Elapsed = time.Since(start)
	return result, nil
}

// resolveRoots implements spec.md §4.6 step 3: the ref-fetch phase, kept
// deliberately separate from the scan/fetch queues (see DESIGN.md's Open
// Question (b)).
func resolveRoots(ctx context.Context, client *remoteclient.Client, cfg *RemoteConfig, args []string) ([]rootSpec, error) {
	if len(args) > 0 {
		roots := make([]rootSpec, 0, len(args))
		for _, arg := range args {
			h := object.Hash(arg)
			if object.ValidateHash(h) {
				roots = append(roots, rootSpec{name: object.Name{Hash: h, Kind: object.KindCommit}})
				continue
			}
			head, err := client.BranchHead(ctx, arg)
			if err != nil {
				return nil, fmt.Errorf("resolve branch %q: %w", arg, err)
			}
			roots = append(roots, rootSpec{name: object.Name{Hash: head, Kind: object.KindCommit}, branch: arg})
		}
		return roots, nil
	}

	if len(cfg.Branches) > 0 {
		roots := make([]rootSpec, 0, len(cfg.Branches))
		for _, branch := range cfg.Branches {
			head, err := client.BranchHead(ctx, branch)
			if err != nil {
				return nil, fmt.Errorf("resolve configured branch %q: %w", branch, err)
			}
			roots = append(roots, rootSpec{name: object.Name{Hash: head, Kind: object.KindCommit}, branch: branch})
		}
		return roots, nil
	}

	summary, err := client.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch refs/summary: %w", err)
	}
	roots := make([]rootSpec, 0, len(summary))
	for ref, hash := range summary {
		branch := strings.TrimPrefix(ref, "heads/")
		roots = append(roots, rootSpec{name: object.Name{Hash: hash, Kind: object.KindCommit}, branch: branch})
	}
	return roots, nil
}

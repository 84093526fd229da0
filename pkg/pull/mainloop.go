package pull

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/odvcencio/ostpull/pkg/fetch"
	"github.com/odvcencio/ostpull/pkg/object"
	"github.com/odvcencio/ostpull/pkg/store"
)

// objectURIer is the subset of *remoteclient.Client the Main Loop needs,
// kept as an interface so tests can substitute a fake.
type objectURIer interface {
	ObjectURI(object.Name) string
}

type fetchDone struct {
	name object.Name
	path string
	err  error
}

type stageDone struct {
	name     object.Name
	computed object.Hash
	err      error
}

// mainLoop is the single-threaded cooperative loop owning the fetcher and
// the outstanding counters, per spec.md §4.3/§5.
type mainLoop struct {
	store   *store.Store
	fetcher *fetch.Fetcher
	client  objectURIer
	toScan  *Queue[Message]
	toFetch *Queue[Message]
	scanErr <-chan error
	log     *log.Logger

	quiescence

	nOutstandingMetaFetches    int
	nOutstandingContentFetches int
	nOutstandingMetaStage      int
	nOutstandingContentStage   int

	nRequestedMetadata int
	nRequestedContent  int
	nFetchedMetadata   int
	nFetchedContent    int

	fetchDone chan fetchDone
	stageDone chan stageDone

	firstErr error
}

func newMainLoop(s *store.Store, f *fetch.Fetcher, c objectURIer, toScan, toFetch *Queue[Message], scanErr <-chan error, logger *log.Logger) *mainLoop {
	return &mainLoop{
		store:     s,
		fetcher:   f,
		client:    c,
		toScan:    toScan,
		toFetch:   toFetch,
		scanErr:   scanErr,
		log:       logger,
		fetchDone: make(chan fetchDone),
		stageDone: make(chan stageDone),
	}
}

func (m *mainLoop) outstanding() int {
	return m.nOutstandingMetaFetches + m.nOutstandingContentFetches +
		m.nOutstandingMetaStage + m.nOutstandingContentStage
}

func (m *mainLoop) terminated() bool {
	return m.isIdle() && m.outstanding() == 0
}

// Run drives the event loop until termination or a fatal error, per
// spec.md §4.3 and §4.5's termination condition. It always posts TagQuit
// to the worker before returning, per §4.5 "On termination (or on first
// fatal error) ... posts QUIT and joins it" — joining is the caller's
// responsibility (Run only posts; Orchestrator waits on the worker
// goroutine).
func (m *mainLoop) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for !m.terminated() {
		if m.firstErr != nil {
			break
		}
		select {
		case <-m.toFetch.Ready():
			m.drainToFetch(runCtx)
		case d := <-m.fetchDone:
			m.handleFetchDone(runCtx, d)
		case d := <-m.stageDone:
			m.handleStageDone(d)
		case err := <-m.scanErr:
			m.captureError(err)
		case <-ctx.Done():
			m.captureError(fmt.Errorf("pull: cancelled: %w: %w", ErrNetwork, ctx.Err()))
		}
	}

	m.toScan.Push(Message{Tag: TagQuit})
	return m.firstErr
}

func (m *mainLoop) captureError(err error) {
	if m.firstErr == nil {
		m.firstErr = err
	}
}

func (m *mainLoop) drainToFetch(ctx context.Context) {
	for {
		msg, ok := m.toFetch.TryPop()
		if !ok {
			return
		}
		switch msg.Tag {
		case TagFetch:
			m.dispatchFetch(ctx, msg.Name)
		case TagScanIdle:
			if serial, ping := m.onScanIdle(); ping {
				m.toScan.Push(Message{Tag: TagMainIdle, Serial: serial})
			}
		case TagMainIdle:
			m.onMainIdleReply(msg.Serial)
		}
	}
}

func (m *mainLoop) dispatchFetch(ctx context.Context, name object.Name) {
	if name.Kind.IsMeta() {
		m.nOutstandingMetaFetches++
		m.nRequestedMetadata++
	} else {
		m.nOutstandingContentFetches++
		m.nRequestedContent++
	}

	uri := m.client.ObjectURI(name)
	if m.log != nil {
		m.log.Printf("fetch %s %s", name, uri)
	}
	go func() {
		path, err := m.fetcher.Fetch(ctx, uri)
		if err != nil {
			err = fmt.Errorf("%s: %w", name, wrapNetwork(err))
		}
		select {
		case m.fetchDone <- fetchDone{name: name, path: path, err: err}:
		case <-ctx.Done():
			if err == nil {
				os.Remove(path)
			}
		}
	}()
}

func wrapNetwork(err error) error {
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func (m *mainLoop) handleFetchDone(ctx context.Context, d fetchDone) {
	if d.name.Kind.IsMeta() {
		m.nOutstandingMetaFetches--
	} else {
		m.nOutstandingContentFetches--
	}
	if d.err != nil {
		m.captureError(d.err)
		return
	}

	if d.name.Kind.IsMeta() {
		m.nOutstandingMetaStage++
	} else {
		m.nOutstandingContentStage++
	}
	go m.stage(ctx, d.name, d.path)
}

// stage reads the fetched temp file, validates it parses as the declared
// variant, and stages it into the store. The temp file is always removed,
// success or failure, per spec.md §5's resource policy.
func (m *mainLoop) stage(ctx context.Context, name object.Name, path string) {
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		m.sendStageDone(ctx, stageDone{name: name, err: fmt.Errorf("read fetched %s: %w", name, err)})
		return
	}

	var computed object.Hash
	if name.Kind.IsMeta() {
		if err := validateMetadataBody(name.Kind, data); err != nil {
			m.sendStageDone(ctx, stageDone{name: name, err: fmt.Errorf("%s: %w", name, err)})
			return
		}
		computed, err = m.store.StageMetadata(name.Kind, data)
	} else {
		if _, perr := object.ParseContentStream(data); perr != nil {
			m.sendStageDone(ctx, stageDone{name: name, err: fmt.Errorf("%s: %w", name, fmt.Errorf("%w: %v", ErrValidation, perr))})
			return
		}
		computed, err = m.store.StageContent(data)
	}
	if err != nil {
		m.sendStageDone(ctx, stageDone{name: name, err: fmt.Errorf("stage %s: %w", name, err)})
		return
	}

	m.sendStageDone(ctx, stageDone{name: name, computed: computed})
}

func (m *mainLoop) sendStageDone(ctx context.Context, d stageDone) {
	select {
	case m.stageDone <- d:
	case <-ctx.Done():
	}
}

func validateMetadataBody(kind object.Kind, data []byte) error {
	var err error
	switch kind {
	case object.KindCommit:
		_, err = object.UnmarshalCommit(data)
	case object.KindDirTree:
		_, err = object.UnmarshalDirTree(data)
	case object.KindDirMeta:
		_, err = object.UnmarshalDirMeta(data)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (m *mainLoop) handleStageDone(d stageDone) {
	if d.name.Kind.IsMeta() {
		m.nOutstandingMetaStage--
	} else {
		m.nOutstandingContentStage--
	}
	if d.err != nil {
		m.captureError(d.err)
		return
	}
	if d.computed != d.name.Hash {
		m.captureError(fmt.Errorf("%s: staged checksum %s does not match expected %s: %w", d.name, d.computed, d.name.Hash, ErrIntegrity))
		return
	}

	if d.name.Kind.IsMeta() {
		m.nFetchedMetadata++
		m.toScan.Push(Message{Tag: TagScan, Name: d.name})
		m.onFetchDrivenScan()
	} else {
		m.nFetchedContent++
	}
}

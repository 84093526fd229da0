// Package store implements the local content-addressed object store that
// spec.md §1 treats as an external collaborator: has_object, load_variant,
// stage_metadata, stage_content, prepare_transaction, commit_transaction,
// write_ref, resolve_rev.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/ostpull/pkg/object"
)

// ErrNotFound is returned by LoadVariant and ResolveRev when the requested
// object or ref does not exist locally.
var ErrNotFound = errors.New("store: not found")

// Store is a directory-backed content-addressed object store, grounded on
// the teacher's object/store.go fanout-directory layout and atomic
// temp-file-then-rename write pattern.
type Store struct {
	root string // e.g. ".ostpull"
}

// Open returns a Store rooted at root, creating its directory skeleton if
// absent.
func Open(root string) (*Store, error) {
	s := &Store{root: root}
	dirs := []string{
		filepath.Join(root, "objects"),
		filepath.Join(root, "refs", "remotes"),
		filepath.Join(root, "tmp"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", d, err)
		}
	}
	return s, nil
}

func (s *Store) path(name object.Name) string {
	return filepath.Join(s.root, object.RelativePath(name))
}

// HasObject reports whether name is already durably stored.
func (s *Store) HasObject(name object.Name) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("store: stat %s: %w", name, err)
}

// LoadVariant returns the raw body previously staged or committed for
// name. It must see objects staged earlier within the same still-open
// transaction (spec.md's G2/G3): this implementation satisfies that by
// writing stage_* directly to the object's final path, so there is no
// separate staging area to reconcile.
func (s *Store) LoadVariant(name object.Name) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store: load %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("store: load %s: %w", name, err)
	}
	return data, nil
}

// writeAtomic writes data to the object's final path via a temp file in
// the same directory followed by rename, matching the teacher's
// object/store.go write path. If the object is already present (two
// concurrent fetches raced, or a previous run already has it), the write
// is a no-op fast path.
func (s *Store) writeAtomic(name object.Name, data []byte) error {
	if ok, err := s.HasObject(name); err != nil {
		return err
	} else if ok {
		return nil
	}

	dest := s.path(name)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("store: rename into place: %w", err)
	}
	return nil
}

// StageMetadata computes data's checksum and durably writes it under that
// checksum, returning it so the caller can assert equality with the expected one
// (spec.md §4.3's staging continuation; a mismatch is ErrIntegrity, raised
// by the caller, not here — Store only reports the computed checksum).
func (s *Store) StageMetadata(kind object.Kind, data []byte) (object.Hash, error) {
	if !kind.IsMeta() {
		return "", fmt.Errorf("store: StageMetadata called with content kind %s", kind)
	}
	computed := object.HashObject(kind, data)
	name := object.Name{Hash: computed, Kind: kind}
	if err := s.writeAtomic(name, data); err != nil {
		return "", fmt.Errorf("store: stage metadata %s: %w", name, err)
	}
	return computed, nil
}

// StageContent hashes and durably writes a FILE object's canonical
// content-stream encoding, returning the computed checksum. It does not
// parse the encoding; callers validate it beforehand.
func (s *Store) StageContent(encoded []byte) (object.Hash, error) {
	computed := object.HashObject(object.KindFile, encoded)
	name := object.Name{Hash: computed, Kind: object.KindFile}
	if err := s.writeAtomic(name, encoded); err != nil {
		return "", fmt.Errorf("store: stage content %s: %w", name, err)
	}
	return computed, nil
}

// Transaction brackets a batch of stage_* calls, matching spec.md §4.6
// steps 5/9. Objects are already durable as soon as Stage* returns (see
// LoadVariant's doc comment on why no separate staging directory exists);
// the transaction's role here is bookkeeping parity with the external
// contract. Stage* calls do not consult any transaction and succeed whether
// or not one is open; a closed Transaction only refuses a further Commit.
type Transaction struct {
	store  *Store
	closed bool
}

// PrepareTransaction opens a new transaction on the store.
func (s *Store) PrepareTransaction() (*Transaction, error) {
	return &Transaction{store: s}, nil
}

// Commit finalizes the transaction. Per G3, the orchestrator must not call
// this until the closure is complete and quiescence has been detected.
func (t *Transaction) Commit() error {
	if t.closed {
		return fmt.Errorf("store: transaction already closed")
	}
	t.closed = true
	return nil
}

// Abort discards the transaction without committing. Already-staged
// objects remain on disk (they are valid, content-addressed, and simply
// unreferenced by any ref) — matching real content-addressed stores, where
// a failed pull leaves harmless loose objects rather than requiring
// rollback.
func (t *Transaction) Abort() {
	t.closed = true
}

// WriteRef durably records hash as the tip of "{remote}/{branch}".
func (s *Store) WriteRef(remote, branch string, hash object.Hash) error {
	refPath := filepath.Join(s.root, "refs", "remotes", remote, branch)
	dir := filepath.Dir(refPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create ref temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.WriteString(string(hash) + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write ref temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync ref temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close ref temp: %w", err)
	}
	if err := os.Rename(tmpPath, refPath); err != nil {
		return fmt.Errorf("store: rename ref into place: %w", err)
	}
	return nil
}

// ResolveRev resolves a "{remote}/{branch}" rev string to its locally
// recorded checksum, or ErrNotFound if no such ref has ever been written.
func (s *Store) ResolveRev(rev string) (object.Hash, error) {
	remote, branch, ok := strings.Cut(rev, "/")
	if !ok {
		return "", fmt.Errorf("store: malformed rev %q, want \"remote/branch\"", rev)
	}
	refPath := filepath.Join(s.root, "refs", "remotes", remote, branch)
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("store: resolve %q: %w", rev, ErrNotFound)
		}
		return "", fmt.Errorf("store: resolve %q: %w", rev, err)
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// Root returns the store's root directory, for callers that need it (e.g.
// temp file placement shared with the fetcher).
func (s *Store) Root() string {
	return s.root
}

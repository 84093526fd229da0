package pull

import "errors"

// Fatal error categories, spec.md §7. All are sentinels wrapped with
// context via fmt.Errorf("...: %w", ...) at the point of detection;
// callers distinguish them with errors.Is.
var (
	// ErrNetwork covers object fetch failure and cancellation of the main
	// loop. Failed config and ref requests made through pkg/remoteclient
	// are returned without it.
	ErrNetwork = errors.New("pull: network error")
	// ErrValidation covers invalid filenames, malformed fetched objects, a
	// remote with no url= in local config, and unsupported remote modes.
	// Invalid checksums and ref names reported by pkg/remoteclient are
	// returned without it, and no UTF-8 check is made.
	ErrValidation = errors.New("pull: validation error")
	// ErrIntegrity covers a checksum mismatch between expected and
	// stored-returned checksum. spec.md §9 Open Question (a): the
	// original source treats this as a fatal assertion; this
	// implementation surfaces it as a structured error instead.
	ErrIntegrity = errors.New("pull: integrity error")
	// ErrStructural covers recursion depth exceeded.
	ErrStructural = errors.New("pull: structural error")
)

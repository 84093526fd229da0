package object

import "fmt"

// VariantLoader loads a stored object's raw body. ReachableSet uses it to
// walk a closure without depending on pkg/store directly (avoiding an
// import cycle store -> object -> store). Tests satisfy it with a map
// lookup; Store.LoadVariant reports absence as ErrNotFound rather than an
// ok flag, so it needs a small wrapper to be used here.
type VariantLoader func(Name) (body []byte, ok bool, err error)

// ReachableSet computes the transitive closure reachable from roots by
// following tree_contents, tree_meta, and dir-tree children, optionally
// also following commit "related" edges. It is used by tests asserting
// spec.md §8's closure-coverage invariant, not by the pull engine itself
// (which computes the same closure incrementally via the scan worker).
func ReachableSet(load VariantLoader, roots []Name, followRelated bool) (map[Name]bool, error) {
	seen := make(map[Name]bool)
	stack := append([]Name(nil), roots...)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true

		if n.Kind == KindFile || n.Kind == KindDirMeta {
			continue
		}

		body, ok, err := load(n)
		if err != nil {
			return nil, fmt.Errorf("object: load %s: %w", n, err)
		}
		if !ok {
			return nil, fmt.Errorf("object: %s not stored, closure incomplete", n)
		}

		switch n.Kind {
		case KindCommit:
			c, err := UnmarshalCommit(body)
			if err != nil {
				return nil, fmt.Errorf("object: unmarshal %s: %w", n, err)
			}
			if c.TreeContentsHash != "" {
				stack = append(stack, Name{Hash: c.TreeContentsHash, Kind: KindDirTree})
			}
			if c.TreeMetaHash != "" {
				stack = append(stack, Name{Hash: c.TreeMetaHash, Kind: KindDirMeta})
			}
			if followRelated {
				for _, r := range c.Related {
					stack = append(stack, Name{Hash: r.Hash, Kind: KindCommit})
				}
			}
		case KindDirTree:
			t, err := UnmarshalDirTree(body)
			if err != nil {
				return nil, fmt.Errorf("object: unmarshal %s: %w", n, err)
			}
			for _, f := range t.Files {
				stack = append(stack, Name{Hash: f.Hash, Kind: KindFile})
			}
			for _, d := range t.Dirs {
				if d.TreeHash != "" {
					stack = append(stack, Name{Hash: d.TreeHash, Kind: KindDirTree})
				}
				if d.MetaHash != "" {
					stack = append(stack, Name{Hash: d.MetaHash, Kind: KindDirMeta})
				}
			}
		}
	}

	return seen, nil
}

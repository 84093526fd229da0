package remoteclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/odvcencio/ostpull/pkg/object"
)

func hashN(b byte) object.Hash {
	var s strings.Builder
	for i := 0; i < 64; i++ {
		fmt.Fprintf(&s, "%x", b%16)
	}
	return object.Hash(s.String())
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestConfigParsed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[core]\nmode = archive\n"))
	})
	c := newTestClient(t, mux)
	f, err := c.Config(context.Background())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	mode, ok := f.Get("core", "", "mode")
	if !ok || mode != "archive" {
		t.Fatalf("got mode=%q ok=%v", mode, ok)
	}
}

func TestBranchHead(t *testing.T) {
	want := hashN(0xa)
	mux := http.NewServeMux()
	mux.HandleFunc("/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s  \n", want)
	})
	c := newTestClient(t, mux)
	got, err := c.BranchHead(context.Background(), "main")
	if err != nil {
		t.Fatalf("branch head: %v", err)
	}
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestBranchHeadInvalidChecksum(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not-a-checksum\n"))
	})
	c := newTestClient(t, mux)
	if _, err := c.BranchHead(context.Background(), "main"); err == nil {
		t.Fatalf("expected error for invalid checksum")
	}
}

func TestSummaryParsed(t *testing.T) {
	c1, c2 := hashN(0x1), hashN(0x2)
	mux := http.NewServeMux()
	mux.HandleFunc("/refs/summary", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s heads/main\n%s heads/release\n", c1, c2)
	})
	c := newTestClient(t, mux)
	got, err := c.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got["heads/main"] != c1 || got["heads/release"] != c2 {
		t.Fatalf("got %+v", got)
	}
}

func TestSummaryRejectsLineWithoutSpace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/refs/summary", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("deadbeef\n"))
	})
	c := newTestClient(t, mux)
	if _, err := c.Summary(context.Background()); err == nil {
		t.Fatalf("expected error for line without space")
	}
}

func TestSummaryRejectsInvalidChecksum(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/refs/summary", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not-hex heads/main\n"))
	})
	c := newTestClient(t, mux)
	if _, err := c.Summary(context.Background()); err == nil {
		t.Fatalf("expected error for invalid checksum")
	}
}

// TestResolveJoinsNonTrailingSlashBasePath guards against RFC 3986 merge
// semantics silently dropping the base URL's last path segment. A base
// like "https://cache.example.com/repos/main" (no trailing slash) is a
// completely realistic remote URL shape, matching real ostree remotes such
// as "https://sdk.gnome.org/repo".
func TestResolveJoinsNonTrailingSlashBasePath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/main/config", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[core]\nmode = archive\n"))
	})
	mux.HandleFunc("/repos/main/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s\n", hashN(0xa))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/repos/main", srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := c.Config(context.Background()); err != nil {
		t.Fatalf("config: %v (base path segment was dropped)", err)
	}
	if _, err := c.BranchHead(context.Background(), "main"); err != nil {
		t.Fatalf("branch head: %v (base path segment was dropped)", err)
	}

	name := object.Name{Hash: "abcdef0123456789", Kind: object.KindFile}
	uri := c.ObjectURI(name)
	if !strings.HasSuffix(uri, "/repos/main/objects/file/ab/cdef0123456789") {
		t.Fatalf("got %q, base path segment was dropped", uri)
	}
}

func TestObjectURI(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	name := object.Name{Hash: "abcdef0123456789", Kind: object.KindFile}
	uri := c.ObjectURI(name)
	if !strings.HasSuffix(uri, "/objects/file/ab/cdef0123456789") {
		t.Fatalf("got %q", uri)
	}
}

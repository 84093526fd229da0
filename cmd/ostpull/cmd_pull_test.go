package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/odvcencio/ostpull/pkg/object"
	"github.com/odvcencio/ostpull/pkg/pull"
	"github.com/spf13/cobra"
)

func runPrintPullResult(remoteName string, r *pull.Result) string {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	printPullResult(cmd, remoteName, r)
	return out.String()
}

func TestPrintPullResultNoChange(t *testing.T) {
	out := runPrintPullResult("origin", &pull.Result{NoChange: []string{"main"}})
	want := "No changes in origin/main\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestPrintPullResultUpdatedBranch(t *testing.T) {
	r := &pull.Result{
		Updated: []pull.RefUpdate{
			{Branch: "main", OldHash: object.Hash("aaa"), NewHash: object.Hash("bbb")},
		},
	}
	out := runPrintPullResult("origin", r)
	want := "remote origin/main is now bbb\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestPrintPullResultSummaryOmittedWhenNoBytesTransferred(t *testing.T) {
	out := runPrintPullResult("origin", &pull.Result{NoChange: []string{"main"}})
	if out != "No changes in origin/main\n" {
		t.Fatalf("unexpected summary line in output: %q", out)
	}
}

func TestPrintPullResultSummaryUsesBytesUnderOneKiB(t *testing.T) {
	r := &pull.Result{
		FetchedMetadata:  1,
		FetchedContent:   2,
		BytesTransferred: 512,
		Elapsed:          3 * time.Second,
	}
	out := runPrintPullResult("origin", r)
	want := "1 metadata, 2 content objects fetched; 512 B transferred in 3 seconds\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestPrintPullResultSummaryShiftsToKiB(t *testing.T) {
	r := &pull.Result{
		FetchedMetadata:  4,
		FetchedContent:   5,
		BytesTransferred: 4096,
		Elapsed:          2 * time.Second,
	}
	out := runPrintPullResult("origin", r)
	want := "4 metadata, 5 content objects fetched; 4 KiB transferred in 2 seconds\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

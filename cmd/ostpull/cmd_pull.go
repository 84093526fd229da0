package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/odvcencio/ostpull/pkg/pull"
	"github.com/odvcencio/ostpull/pkg/store"
	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	var verbose bool
	var related bool

	cmd := &cobra.Command{
		Use:   "pull REMOTE [BRANCH|CHECKSUM ...]",
		Short: "Fetch the closure of missing objects for REMOTE's branches or checksums",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remoteName := args[0]
			rootDir, err := findRepoRoot(".")
			if err != nil {
				return err
			}
			storeDir := filepath.Join(rootDir, storeDirName)

			s, err := store.Open(storeDir)
			if err != nil {
				return fmt.Errorf("open local store: %w", err)
			}
			tmpDir := filepath.Join(storeDir, "tmp")
			if err := os.MkdirAll(tmpDir, 0o755); err != nil {
				return fmt.Errorf("create temp dir: %w", err)
			}

			var logger *log.Logger
			if verbose {
				logger = log.New(cmd.ErrOrStderr(), "ostpull: ", 0)
			}

			result, err := pull.Run(cmd.Context(), pull.Options{
				RemoteName:  remoteName,
				ConfigPath:  filepath.Join(storeDir, "config"),
				Args:        args[1:],
				Related:     related,
				Store:       s,
				HTTPClient:  http.DefaultClient,
				TmpDir:      tmpDir,
				Concurrency: 8,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			printPullResult(cmd, remoteName, result)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print diagnostic detail during the pull")
	cmd.Flags().BoolVar(&related, "related", false, "also fetch commits listed in each commit's related field")
	return cmd
}

// printPullResult renders the same per-ref status lines ostree_builtin_pull
// prints ("No changes in %s" / "remote %s is now %s", full checksum, no
// distinction between a new and a moved branch), plus the supplemented
// bytes-transferred summary line from original_source.
func printPullResult(cmd *cobra.Command, remoteName string, r *pull.Result) {
	out := cmd.OutOrStdout()
	for _, branch := range r.NoChange {
		fmt.Fprintf(out, "No changes in %s/%s\n", remoteName, branch)
	}
	for _, ru := range r.Updated {
		fmt.Fprintf(out, "remote %s/%s is now %s\n", remoteName, ru.Branch, ru.NewHash)
	}

	if r.BytesTransferred == 0 {
		return
	}
	shift := uint64(1)
	unit := "B"
	if r.BytesTransferred >= 1024 {
		shift = 1024
		unit = "KiB"
	}
	fmt.Fprintf(out, "%d metadata, %d content objects fetched; %d %s transferred in %.0f seconds\n",
		r.FetchedMetadata, r.FetchedContent, r.BytesTransferred/shift, unit, r.Elapsed.Seconds())
}

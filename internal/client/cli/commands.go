package cli

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/uploader"
	"github.com/spf13/cobra"
)

func (a *App) uploadCommand() *cobra.Command {
	var opts uploader.Options

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file through a resumable session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ChunkMultiplier = a.config.ChunkMultiplier
			f, err := a.uploader.Upload(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\t%s\t%d\n", f.ID, f.FileName, f.FileSize)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "remote file name (defaults to the local name)")
	cmd.Flags().StringVar(&opts.FolderPath, "folder", "", "destination folder path, e.g. docs/2024")
	cmd.Flags().StringVar(&opts.MimeType, "mime-type", "", "content type recorded in the catalog")
	return cmd
}

func (a *App) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cache entries",
	}

	put := &cobra.Command{
		Use:   "put <key> <file>",
		Short: "Store a file under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := a.uploader.CachePut(cmd.Context(), args[0], args[1], a.config.ChunkMultiplier)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\t%d\n", args[0], size)
			return nil
		},
	}

	ls := &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List cache keys, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := a.uploader.CacheList(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(a.out, k)
			}
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <key>",
		Short: "Delete a cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.uploader.CacheDelete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(put, ls, rm)
	return cmd
}

func (a *App) grantCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "grant <subject>",
		Short: "Issue a delegated upload token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.uploader.IssueGrant(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\nexpires %s\n", g.Token, g.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "grant validity (server default when zero)")
	return cmd
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/documents"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file|dir]...",
	Short: "Index one or more documents",
	Long: `Uploads each file, replacing any previously indexed version with the same name.
Directories are scanned recursively for supported documents.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [filename]",
	Short: "Remove a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Remove chunks whose document file is gone",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every document and chunk",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var (
	uploadMeta []string
	resetYes   bool
)

func init() {
	uploadCmd.Flags().StringArrayVarP(&uploadMeta, "meta", "m", nil, "Metadata key=value attached to every chunk (repeatable)")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm the reset")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(resetCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	metadata, err := parseMeta(uploadMeta)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	paths, err := collectFiles(ctx, args, services.AllowedExtensions)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no supported documents found")
	}

	var failed int
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", path, err)
			failed++
			continue
		}
		res, err := services.Documents.Upload(ctx, filepath.Base(path), raw, metadata)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", path, err)
			failed++
			continue
		}
		cmd.Printf("%s: %d chunks indexed", res.Filename, res.ChunksCreated)
		if res.ChunksReplaced > 0 {
			cmd.Printf(" (%d replaced)", res.ChunksReplaced)
		}
		cmd.Println()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}
	return nil
}

// parseMeta turns key=value pairs into metadata, typing integers, floats and booleans.
func parseMeta(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q, want key=value", pair)
		}
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			meta[key] = i
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			meta[key] = f
		} else if b, err := strconv.ParseBool(value); err == nil {
			meta[key] = b
		} else {
			meta[key] = value
		}
	}
	return meta, nil
}

func runList(cmd *cobra.Command, _ []string) error {
	docs, err := services.Documents.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found")
		return nil
	}

	for _, d := range docs {
		chunks := "?"
		if d.ChunkCount != nil {
			chunks = strconv.Itoa(*d.ChunkCount)
			if !d.ChunkCountExact {
				chunks += "~"
			}
		}
		cmd.Printf("  %-40s %10d bytes  %6s chunks  %s\n", d.Filename, d.SizeBytes, chunks, d.UploadedAt.Format("2006-01-02 15:04"))
	}
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	res, err := services.Documents.Delete(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", args[0], err)
	}
	if res.Status == documents.StatusNotFound {
		return fmt.Errorf("document %s not found", args[0])
	}
	cmd.Printf("Deleted %s (%d chunks)\n", args[0], res.ChunksDeleted)
	return nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	removed, err := services.Documents.Reconcile(cmd.Context())
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	cmd.Printf("Removed %d orphaned chunks\n", removed)
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	if !resetYes {
		return errors.New("reset deletes every document, pass --yes to confirm")
	}
	res, err := services.Documents.Reset(cmd.Context())
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	cmd.Printf("Deleted %d chunks and %d files\n", res.ChunksDeleted, res.FilesDeleted)
	return nil
}

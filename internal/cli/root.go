// Package cli implements the docqa command line.
package cli

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_service.go -package=mocks docqa/internal/cli DocumentService

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"docqa/internal/documents"
	"docqa/internal/rag"
)

// DocumentService is the document lifecycle driven by the CLI.
type DocumentService interface {
	Upload(ctx context.Context, filename string, raw []byte, metadata map[string]any) (documents.UploadResult, error)
	Delete(ctx context.Context, filename string) (documents.DeleteResult, error)
	List(ctx context.Context) ([]documents.DocumentInfo, error)
	Reconcile(ctx context.Context) (int, error)
	Reset(ctx context.Context) (documents.ResetResult, error)
}

// Services are the backends the commands run against.
type Services struct {
	Documents DocumentService
	Engine    rag.Engine
	// AllowedExtensions filters files found when uploading a directory.
	AllowedExtensions []string
	// Serve runs the HTTP API until ctx is done.
	Serve func(ctx context.Context) error
}

// Loader builds the services on first use.
type Loader func(ctx context.Context) (*Services, error)

var (
	loader   Loader
	services *Services
	version  = "dev"
)

var rootCmd = &cobra.Command{
	Use:           "docqa",
	Short:         "Ask questions about your documents",
	Long:          `docqa indexes PDF, text, markdown and Word documents and answers questions about them with a local language model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadServices(cmd.Context())
	},
}

func loadServices(ctx context.Context) error {
	if services != nil {
		return nil
	}
	if loader == nil {
		return errors.New("services not configured")
	}
	svc, err := loader(ctx)
	if err != nil {
		return err
	}
	services = svc
	return nil
}

// Execute runs the command line with args taken from os.Args.
func Execute(ctx context.Context, v string, l Loader) error {
	version = v
	loader = l
	// cobra prints to stderr unless told otherwise
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	return rootCmd.ExecuteContext(ctx)
}

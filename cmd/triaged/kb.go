package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/triaged/internal/triage"
)

var (
	kbAddTitle    string
	kbAddCategory string
	kbAddFile     string

	kbUpdateContent  string
	kbUpdateCategory string
	kbUpdateFile     string
)

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.AddCommand(kbListCmd, kbSearchCmd, kbAddCmd, kbUpdateCmd, kbBackupCmd, kbRestoreCmd, kbStatsCmd)

	kbAddCmd.Flags().StringVarP(&kbAddTitle, "title", "t", "", "document title (defaults to the file name with --file)")
	kbAddCmd.Flags().StringVarP(&kbAddCategory, "category", "c", "", "document category (default \"custom\")")
	kbAddCmd.Flags().StringVarP(&kbAddFile, "file", "f", "", "read content from a file, or - for stdin")

	kbUpdateCmd.Flags().StringVar(&kbUpdateContent, "content", "", "replacement content")
	kbUpdateCmd.Flags().StringVarP(&kbUpdateFile, "file", "f", "", "read replacement content from a file, or - for stdin")
	kbUpdateCmd.Flags().StringVarP(&kbUpdateCategory, "category", "c", "", "new category (unchanged when empty)")
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the medical knowledge base",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(_ context.Context, svc *triage.Service) error {
			docs, err := svc.Documents()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), docs)
		})
	},
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search documents by title, category and content",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withService(cmd, func(_ context.Context, svc *triage.Service) error {
			results, err := svc.Search(query)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		})
	},
}

var kbAddCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Add a document and re-index",
	Long: `Add a document to the knowledge base. The collection is persisted and the
retrieval index rebuilt before the command returns.

Examples:
  # Inline content
  triaged kb add --title "Aspirin" --category medications "Adults: 300-1000mg every 4-6 hours."

  # Upload a text file (title defaults to the file name)
  triaged kb add --file burns.txt --category first_aid

  # From stdin
  cat notes.txt | triaged kb add --title "Clinic notes" --file -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKBAdd,
}

func runKBAdd(cmd *cobra.Command, args []string) error {
	if kbAddFile != "" && len(args) > 0 {
		return errors.New("give content as an argument or with --file, not both")
	}

	title := kbAddTitle
	var content string
	if kbAddFile != "" {
		data, err := readInput(cmd, kbAddFile)
		if err != nil {
			return err
		}
		content = string(data)
		if title == "" && kbAddFile != "-" {
			title = "Uploaded: " + filepath.Base(kbAddFile)
		}
	} else if len(args) == 1 {
		content = args[0]
	}
	if title == "" {
		return errors.New("--title is required")
	}

	return withService(cmd, func(ctx context.Context, svc *triage.Service) error {
		add := svc.AddDocument
		if kbAddFile != "" {
			add = svc.UploadDocument
		}
		doc, err := add(ctx, title, content, kbAddCategory)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), doc)
	})
}

var kbUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a document's content and re-index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := kbUpdateContent
		if kbUpdateFile != "" {
			data, err := readInput(cmd, kbUpdateFile)
			if err != nil {
				return err
			}
			content = string(data)
		}
		return withService(cmd, func(ctx context.Context, svc *triage.Service) error {
			doc, err := svc.UpdateDocument(ctx, args[0], content, kbUpdateCategory)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		})
	},
}

// BackupResponse reports where a backup was written.
type BackupResponse struct {
	Path string `json:"path"`
}

var kbBackupCmd = &cobra.Command{
	Use:   "backup [path]",
	Short: "Write a backup of the knowledge base",
	Long: `Write a backup of the knowledge base. Without a path the backup goes to
knowledge.backup_dir as knowledge_backup_YYYYMMDD_HHMMSS.json.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		return withService(cmd, func(ctx context.Context, svc *triage.Service) error {
			written, err := svc.Backup(ctx, path)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), BackupResponse{Path: written})
		})
	},
}

// RestoreResponse reports the outcome of a restore.
type RestoreResponse struct {
	Path           string `json:"path"`
	TotalDocuments int    `json:"total_documents"`
}

var kbRestoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Replace the knowledge base from a backup and re-index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *triage.Service) error {
			if err := svc.Restore(ctx, args[0]); err != nil {
				return err
			}
			docs, err := svc.Documents()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), RestoreResponse{Path: args[0], TotalDocuments: len(docs)})
		})
	},
}

var kbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(_ context.Context, svc *triage.Service) error {
			st, err := svc.Statistics()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		})
	},
}

// readInput reads a file, or stdin when name is "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}
	return data, nil
}

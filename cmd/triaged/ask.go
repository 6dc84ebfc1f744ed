package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/triaged/internal/triage"
)

var (
	askSession     string
	askShowContext bool

	contextTopK    int
	contextResults bool
)

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(contextCmd)

	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session ID recorded with the consultation")
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "include the retrieved reference context in the output")

	contextCmd.Flags().IntVarP(&contextTopK, "top-k", "k", 0, "number of passages to retrieve (0 uses retrieval.top_k)")
	contextCmd.Flags().BoolVar(&contextResults, "results", false, "print ranked results as JSON instead of formatted context")
}

// askCmd runs one consultation turn
var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask a symptom question",
	Long: `Run one consultation turn: retrieve reference context, synthesize a
structured response and append the turn to the consultation log.

Examples:
  # Ask a question
  triaged ask "severe headache with nausea"

  # Group turns under a session and show the retrieved context
  triaged ask --session visit-42 --show-context "high fever since yesterday"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withService(cmd, func(ctx context.Context, svc *triage.Service) error {
		turn, err := svc.Chat(ctx, triage.ChatRequest{Query: query, SessionID: askSession})
		if err != nil {
			return err
		}
		if !askShowContext {
			turn.Context = ""
		}
		return printJSON(cmd.OutOrStdout(), turn)
	})
}

// contextCmd shows what retrieval returns for a query
var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Show the reference context retrieved for a query",
	Long: `Show the reference context retrieved for a query without generating a
response or logging a consultation.

Examples:
  # Formatted context as passed to the generator
  triaged context "persistent cough"

  # Ranked results with scores and strategy
  triaged context --results -k 5 "persistent cough"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContext,
}

func runContext(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withService(cmd, func(ctx context.Context, svc *triage.Service) error {
		if contextResults {
			results, err := svc.RetrieveResults(ctx, query, contextTopK)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), svc.Retrieve(ctx, query))
		return err
	})
}

// Command phrasebatch translates the phrases of a CSV project with LLM backends.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	projectDir string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "phrasebatch",
		Short: "Batch phrase translation with LLM backends",
		Long: `phrasebatch translates the phrases of a CSV project in batches through
OpenAI, Anthropic, Gemini or Grok models.

A project is a directory holding a config.yaml (or config.json) and the
source CSV, with one key column and one column per language. Accepted
translations are saved as they arrive, so an interrupted run resumes where
it stopped.

API keys are read from the environment or a .env file:
  OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, GROK_API_KEY`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&projectDir, "project", "p", ".", "Project directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newTranslateCmd(),
		newCreateCmd(),
		newModelsCmd(),
	)

	return root
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

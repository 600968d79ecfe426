package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cleanrag/internal/domain"
	"cleanrag/internal/ingest"
	"cleanrag/internal/server"
	"cleanrag/internal/tui"
)

var (
	askZipcode string
	seedIndex  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /api/chat, /healthz and /metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if cfg.Environment == "production" {
			gin.SetMode(gin.ReleaseMode)
		}

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		srv := server.New(server.Config{
			Addr:           cfg.Server.Addr,
			RequestTimeout: cfg.Server.RequestTimeout(),
		}, a.chatService(), a.registry, a.metrics, logger)
		return srv.Start(ctx)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Ask one question and print the reply as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout())
		defer cancel()

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		reply, err := a.chatService().ProcessChat(ctx, domain.Query{
			Message: strings.Join(args, " "),
			Zipcode: askZipcode,
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive terminal chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// log lines would corrupt the full-screen UI
		quiet := zap.NewNop()
		if verbose {
			quiet = logger
		}
		a, err := buildApp(cmd.Context(), cfg, quiet)
		if err != nil {
			return err
		}
		m := tui.New(a.chatService(), cfg.Server.RequestTimeout())
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [files...]",
	Short: "Embed YAML seed files or .txt documents into the indices",
	Long: `Seed files are YAML documents with "knowledge" and "providers" lists.
Plain .txt files are chunked by sentence and added to the knowledge index.
Globs are expanded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := ingest.ParseTarget(seedIndex)
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		res, err := a.ingestPipeline().Seed(cmd.Context(), args, target)
		if err != nil {
			return err
		}
		for _, e := range res.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), "skipped:", e)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "upserted %d records (%d errors)\n", res.Upserted, len(res.Errors))
		if len(res.Errors) > 0 && res.Upserted == 0 {
			return fmt.Errorf("seed failed")
		}
		return nil
	},
}

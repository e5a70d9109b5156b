package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mailmatch/internal/server"
)

var (
	servePort     int
	serveAllowAll bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mailmatch HTTP API server",
	Long:  `Starts the HTTP API server exposing emails, search, job postings, candidates and match endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		provider, err := createLLMProviderFromConfig(a.cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}

		srv := server.New(server.Config{Port: servePort, AllowAll: serveAllowAll}, server.Deps{
			DB:             a.db,
			Index:          a.index,
			Embedder:       a.embedder,
			Provider:       provider,
			Model:          a.cfg.Model,
			TopK:           a.cfg.TopK,
			AutoReplyScore: a.cfg.AutoReplyScore,
			MailboxAddress: a.cfg.MailboxAddress,
			MaxConcurrency: a.cfg.MaxConcurrency,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-stop:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		if err := a.persistIndex(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: persisting vector store: %v\n", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8420, "port to listen on")
	serveCmd.Flags().BoolVar(&serveAllowAll, "allow-all-origins", false, "allow all CORS origins (dev mode)")
	rootCmd.AddCommand(serveCmd)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sendwatch/internal/server"
)

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 8374, "HTTP listen port (localhost only)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP operator API",
	Long:  "Runs sendwatch as a local HTTP service: agents submit actions, the\noperator works the queue and the policy controls over the same API.\nThe config file is hot-reloaded on change.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := server.New(server.Config{
		Port:       servePort,
		ConfigPath: configPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	reloader, err := server.NewReloader(srv, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	} else {
		go reloader.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	fmt.Printf("sendwatch listening on 127.0.0.1:%d\n", servePort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		fmt.Printf("received %s, shutting down\n", sig)
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	}
}

package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/JohnCoene/crosstalk/internal/config"
	"github.com/JohnCoene/crosstalk/internal/document"
	"github.com/JohnCoene/crosstalk/internal/printer"
	"github.com/JohnCoene/crosstalk/internal/ws"
	"github.com/JohnCoene/crosstalk/pkg/bridge"
)

var (
	serveConfigPath string
	serveAddr       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the document's bus to remote widget adapters",
	Long: `Build the bus from crosstalk.yml and expose it on /ws so out-of-process
widget adapters can subscribe to group variables and publish over
websockets.

When the manifest configures a bridge, every configured group is also
mirrored onto Redis Pub/Sub so other processes sharing the document name
converge on the same state.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "crosstalk.yml", "Path to the document manifest")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides serve.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return printer.Error("Invalid document manifest", err.Error(), nil)
	}

	doc, err := document.Build(cfg, filepath.Dir(serveConfigPath))
	if err != nil {
		return printer.Error("Failed to build document", err.Error(), nil)
	}
	defer doc.Dispose()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Bridge != nil {
		br, err := bridge.New(&redis.Options{Addr: cfg.Bridge.Addr}, cfg.Bridge.Document)
		if err != nil {
			return printer.Error("Failed to create bridge", err.Error(), nil)
		}
		defer br.Close()

		if err := br.Ping(ctx); err != nil {
			return printer.Error(
				"Redis is not reachable",
				fmt.Sprintf("Could not ping %s: %v.", cfg.Bridge.Addr, err),
				[]string{"Start Redis, or remove the bridge section from the manifest"},
			)
		}
		for _, name := range doc.Bus.GroupNames() {
			if err := br.MirrorGroup(ctx, doc.Bus.Group(name)); err != nil {
				return printer.Error("Failed to mirror group", err.Error(), nil)
			}
		}
		printer.Step("mirroring document %q via %s\n", cfg.Bridge.Document, cfg.Bridge.Addr)

		go func() {
			for err := range br.Errors() {
				printer.Warning("bridge: %v\n", err)
			}
		}()
	}

	addr := cfg.ServeAddr()
	if serveAddr != "" {
		addr = serveAddr
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewHub(doc.Bus))

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	printer.Success("serving %d datasets on %s/ws\n", len(doc.Handles), addr)

	select {
	case <-ctx.Done():
		printer.Info("shutting down\n")
		return server.Shutdown(context.Background())
	case err := <-errCh:
		return printer.Error("Server failed", err.Error(), []string{
			"Check that " + addr + " is not already in use",
		})
	}
}

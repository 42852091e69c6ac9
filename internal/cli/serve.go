package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cmstory/internal/bgremove"
	"github.com/roach88/cmstory/internal/content"
	"github.com/roach88/cmstory/internal/gallery"
	"github.com/roach88/cmstory/internal/inquiry"
	"github.com/roach88/cmstory/internal/web"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Ready receives the listening address once the server accepts
	// connections. Used by tests that bind to port 0.
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site",
		Long: `Serve the CM Story site over HTTP.

Stored custom images are loaded in the background; pages show the default
images until loading finishes. Image uploads are accepted only when
CMSTORY_UPLOAD_TOKEN is set, and must present that token. Uploaded logos have
their background removed when OPENAI_API_KEY is set.

Example:
  cmstory serve --addr :8080 --data-dir /var/lib/cmstory`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default $CMSTORY_ADDR or 127.0.0.1:8080)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}

	logger := opts.logger(cmd.ErrOrStderr())
	slog.SetDefault(logger)

	if err := opts.ensureDataDir(); err != nil {
		return WrapExitError(ExitCommandError, "failed to create data directory", err)
	}

	site, err := loadSite(cfg.ContentFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load content", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	images := opts.openStore(logger)
	defer func() {
		if closeErr := images.Close(); closeErr != nil {
			slog.Error("error closing image store", "error", closeErr)
		}
	}()

	inquiries, err := inquiry.Open(ctx, cfg.InquiriesPath(), site, inquiry.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open inquiry log", err)
	}
	defer inquiries.Close()

	remover := bgremove.New(cfg.OpenAIAPIKey, logger)
	g := gallery.New(images,
		gallery.WithRefiner(bgremove.BestEffort(remover, logger)),
		gallery.WithLogger(logger),
	)

	handler, err := web.New(web.Config{
		Site:        site,
		Images:      g,
		Inquiries:   inquiries,
		Store:       images,
		DefaultLang: cfg.Lang(),
		UploadToken: cfg.UploadToken,
		Logger:      logger,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build handler", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		g.Load(ctx)
	}()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	slog.Info("server starting", "addr", ln.Addr().String(), "data_dir", cfg.DataDir)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", ln.Addr())
	if opts.Ready != nil {
		opts.Ready <- ln.Addr().String()
	}

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown incomplete", "error", err)
	}

	<-loaded
	g.Wait()
	slog.Info("server stopped gracefully")
	return runErr
}

// loadSite returns the content document at path, or the embedded one when
// path is empty.
func loadSite(path string) (*content.Site, error) {
	if path == "" {
		return content.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return content.Load(f)
}

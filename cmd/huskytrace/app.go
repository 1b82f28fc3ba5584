package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/pdxmph/huskytrace/pkg/analyzer"
	"github.com/pdxmph/huskytrace/pkg/config"
	"github.com/pdxmph/huskytrace/pkg/handoff"
	"github.com/pdxmph/huskytrace/pkg/kitty"
	"github.com/pdxmph/huskytrace/pkg/logging"
	"github.com/pdxmph/huskytrace/pkg/present"
	"github.com/pdxmph/huskytrace/pkg/preview"
	"github.com/pdxmph/huskytrace/pkg/session"
	"github.com/pdxmph/huskytrace/pkg/thumbnail"
	"github.com/pdxmph/huskytrace/pkg/upload"
)

const leaseGrace = 30 * time.Second

// app holds what every command needs: config, logger, the handoff backend
// and the analysis client
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	slots    handoff.Slots
	analyzer *analyzer.Client
	out      io.Writer
	errOut   io.Writer
	format   string
	styled   bool
	preview  bool
	display  *kitty.ImageDisplay
	leaseTTL time.Duration
}

// newApp loads config and applies the global flags on top of it
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if storeBackend != "" {
		cfg.Store.Backend = string(storeBackend)
	}
	if sessionID != "" {
		cfg.Session = sessionID
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Debug:   debug || cfg.Debug,
		Console: isTerminal(os.Stderr),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	timeout, _ := cfg.RequestTimeout()
	ttl, _ := cfg.SessionTTL()

	slots, err := handoff.Open(cmd.Context(), handoff.Options{
		Backend:   cfg.Store.Backend,
		Path:      cfg.Store.Path,
		RedisAddr: cfg.Store.RedisAddr,
		RedisDB:   cfg.Store.RedisDB,
		TTL:       ttl,
	})
	if err != nil {
		logger.Sync()
		return nil, err
	}

	format := outputFormat
	if format == "" {
		format = cfg.Default.Format
	}

	// A submit holds its session for at most one request plus the local work
	var leaseTTL time.Duration
	if timeout > 0 {
		leaseTTL = timeout + leaseGrace
	}

	out := cmd.OutOrStdout()
	return &app{
		cfg:      cfg,
		logger:   logger,
		slots:    slots,
		analyzer: analyzer.New(cfg.APIURL, analyzer.Options{Timeout: timeout, Logger: logger}),
		out:      out,
		errOut:   cmd.ErrOrStderr(),
		format:   format,
		styled:   isTerminal(out),
		preview:  cfg.IsPreviewEnabled() && !noPreview,
		display:  kitty.NewImageDisplay(out),
		leaseTTL: leaseTTL,
	}, nil
}

// Close releases the store and flushes logs
func (a *app) Close() {
	if err := a.slots.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	a.logger.Sync()
}

// sessionID is the terminal's session unless one was named
func (a *app) sessionID() string {
	if a.cfg.Session != "" {
		return a.cfg.Session
	}
	return session.DefaultID()
}

// newSession creates a session sharing the app's store and client
func (a *app) newSession(id string, onChange func(upload.State)) *session.Session {
	return session.New(session.Deps{
		ID:       id,
		Analyzer: a.analyzer,
		Slots:    a.slots,
		LeaseTTL: a.leaseTTL,
		Logger:   a.logger,
		OnChange: onChange,
	})
}

// progress reports upload transitions on stderr so stdout stays clean
func (a *app) progress(st upload.State) {
	if up, ok := st.(upload.Uploading); ok {
		fmt.Fprintf(a.errOut, "Analyzing %s...\n", up.Candidate.Name)
	}
}

// showView prints the results screen
func (a *app) showView(v *present.View) error {
	if a.preview && a.format == present.FormatText {
		a.showPreview(v.PreviewURL)
	}
	return present.Render(a.out, v, a.format, present.RenderOptions{
		Styled:    a.styled,
		Templates: a.cfg.Templates,
	})
}

// showPreview displays the image inline on Kitty; elsewhere the preview URL
// in the text output is all there is
func (a *app) showPreview(previewURL string) {
	if !a.display.Available() {
		return
	}
	path, err := preview.PathFromURL(previewURL)
	if err != nil {
		a.logger.Debug("preview is not a local file", zap.String("preview", previewURL))
		return
	}
	thumb, err := thumbnail.Generate(path, thumbnail.DefaultMaxSize)
	if err != nil {
		a.logger.Debug("failed to create thumbnail", zap.Error(err))
		return
	}
	if err := a.display.Display(thumb.Data); err != nil {
		a.logger.Debug("failed to display preview", zap.Error(err))
	}
}

// submit uploads the session's candidate and shows the outcome
func (a *app) submit(ctx context.Context, sess *session.Session) error {
	state, err := sess.Submit(ctx)
	if err != nil {
		return err
	}
	if failed, ok := state.(upload.Failed); ok {
		return errors.New(failed.Reason)
	}

	view, err := sess.Results(ctx)
	if err != nil {
		return err
	}
	return a.showView(view)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// interactive reports whether both ends of the terminal are a user
func interactive(cmd *cobra.Command) bool {
	return isTerminal(cmd.OutOrStdout()) && readerIsTerminal(cmd.InOrStdin())
}

func readerIsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

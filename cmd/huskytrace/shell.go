package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdxmph/huskytrace/pkg/browser"
	"github.com/pdxmph/huskytrace/pkg/intake"
	"github.com/pdxmph/huskytrace/pkg/present"
	"github.com/pdxmph/huskytrace/pkg/session"
	"github.com/pdxmph/huskytrace/pkg/upload"
)

// openURL is a test seam for launching the browser
var openURL = browser.Open

const shellHelp = `Intake screen:
  select <path>   choose an image (PNG or JPEG, up to 25 MiB)
  drop <text>     paste a file dragged onto the terminal
  reset           clear the selection
  submit          analyze the selected image
Results screen:
  results         show the last result
  map             open the photo location in Google Maps
  open            open the original image
  back            analyze another image
Always:
  status          show the current screen and selection
  help            show this list
  quit | exit     leave`

func shellCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.newSession(a.sessionID(), a.progress)
	return runShell(cmd.Context(), a, sess, cmd.InOrStdin())
}

// runShell is a read-eval-print loop over the intake and results screens of
// one session. It returns on EOF or quit.
func runShell(ctx context.Context, a *app, sess *session.Session, in io.Reader) error {
	sh := &shell{app: a, sess: sess}
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(a.out, "Choose a PNG or JPEG image to analyze. Type help for commands.")
	for {
		fmt.Fprintf(a.out, "huskytrace [%s] > ", sess.Screen())
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		command, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch command {
		case "help", "?":
			fmt.Fprintln(a.out, shellHelp)
		case "select":
			sh.selected(sess.SelectPath(rest))
		case "drop":
			sh.selected(sess.Drop(rest))
		case "reset":
			sh.report(sess.Reset())
		case "submit":
			sh.submit(ctx)
		case "results":
			sh.results(ctx)
		case "map":
			sh.openMap()
		case "open":
			sh.openPreview()
		case "back":
			sh.view = nil
			sh.report(sess.Back())
		case "status":
			sh.status()
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return nil
		default:
			fmt.Fprintln(a.out, "Unknown command:", command)
		}
	}
}

type shell struct {
	app  *app
	sess *session.Session
	view *present.View // last results screen shown
}

func (sh *shell) selected(c intake.Candidate, err error) {
	if err != nil {
		sh.report(err)
		return
	}
	fmt.Fprintf(sh.app.out, "Selected %s\n", describe(c))
}

func (sh *shell) submit(ctx context.Context) {
	state, err := sh.sess.Submit(ctx)
	switch {
	case errors.Is(err, session.ErrNoCandidate):
		fmt.Fprintln(sh.app.errOut, "Choose an image first.")
		return
	case errors.Is(err, upload.ErrCompleted):
		fmt.Fprintln(sh.app.errOut, "Already analyzed. Type back to analyze another image.")
		return
	case err != nil:
		sh.report(err)
		return
	}

	switch st := state.(type) {
	case upload.Failed:
		fmt.Fprintf(sh.app.errOut, "✗ %s\n", st.Reason)
	case upload.Succeeded:
		sh.results(ctx)
	}
}

// results shows the results screen. With nothing stored the session is
// already back on the intake screen and there is nothing to say.
func (sh *shell) results(ctx context.Context) {
	view, err := sh.sess.Results(ctx)
	if errors.Is(err, present.ErrNoResult) {
		return
	}
	if err != nil {
		sh.report(err)
		return
	}
	sh.view = view
	sh.report(sh.app.showView(view))
}

func (sh *shell) openMap() {
	if sh.onResults() {
		if sh.view.Location == nil {
			fmt.Fprintln(sh.app.errOut, "This image has no GPS location.")
			return
		}
		sh.report(openURL(sh.view.Location.MapURL))
	}
}

func (sh *shell) openPreview() {
	if sh.onResults() {
		sh.report(openURL(sh.view.PreviewURL))
	}
}

func (sh *shell) onResults() bool {
	if sh.view == nil || sh.sess.Screen() != session.ScreenResults {
		fmt.Fprintln(sh.app.errOut, "Nothing to open. Type results to load the last analysis.")
		return false
	}
	return true
}

func (sh *shell) status() {
	out := sh.app.out
	fmt.Fprintf(out, "Screen: %s\n", sh.sess.Screen())
	fmt.Fprintf(out, "Upload: %s\n", sh.sess.State().Name())
	if failed, ok := sh.sess.State().(upload.Failed); ok {
		fmt.Fprintf(out, "Last error: %s\n", failed.Reason)
	}
	if c, ok := sh.sess.Candidate(); ok {
		fmt.Fprintf(out, "Selected: %s\n", describe(c))
	} else {
		fmt.Fprintln(out, "Selected: (none)")
	}
}

func (sh *shell) report(err error) {
	if err != nil {
		fmt.Fprintf(sh.app.errOut, "Error: %v\n", err)
	}
}

func describe(c intake.Candidate) string {
	return fmt.Sprintf("%s (%s, %s)", c.Name, c.MIMEType, humanize.IBytes(uint64(c.Size)))
}

package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdxmph/huskytrace/pkg/present"
)

func analyzeCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.newSession(a.sessionID(), a.progress)
	if _, err := sess.SelectPath(args[0]); err != nil {
		return err
	}
	return a.submit(cmd.Context(), sess)
}

func dropCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.newSession(a.sessionID(), a.progress)
	if _, err := sess.Drop(strings.Join(args, " ")); err != nil {
		return err
	}
	return a.submit(cmd.Context(), sess)
}

// resultsCommand shows the session's last result. Without one it goes to
// the intake screen: the shell when a user is at the terminal, otherwise
// nothing at all.
func resultsCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.newSession(a.sessionID(), a.progress)
	view, err := sess.Results(cmd.Context())
	if errors.Is(err, present.ErrNoResult) {
		if interactive(cmd) {
			return runShell(cmd.Context(), a, sess, cmd.InOrStdin())
		}
		return nil
	}
	if err != nil {
		return err
	}
	return a.showView(view)
}

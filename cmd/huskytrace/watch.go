package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdxmph/huskytrace/pkg/upload"
	"github.com/pdxmph/huskytrace/pkg/watch"
)

func watchCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := args[0]
	sess := a.newSession(a.sessionID(), a.progress)
	w := watch.New(dir, sess, watch.Options{Existing: watchExisting, Logger: a.logger})

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	fmt.Fprintf(a.errOut, "Watching %s for PNG and JPEG images, analyzing with %s (Ctrl+C to stop)\n",
		dir, a.analyzer.Endpoint())
	return w.Run(ctx, func(ev watch.Event) {
		a.reportWatch(ev)
	})
}

func (a *app) reportWatch(ev watch.Event) {
	name := filepath.Base(ev.Path)
	switch {
	case ev.Err != nil:
		fmt.Fprintf(a.errOut, "%s: %v\n", name, ev.Err)
	case ev.View != nil:
		if err := a.showView(ev.View); err != nil {
			fmt.Fprintf(a.errOut, "%s: %v\n", name, err)
		}
	default:
		if failed, ok := ev.State.(upload.Failed); ok {
			fmt.Fprintf(a.errOut, "%s: %s\n", name, failed.Reason)
		}
	}
}

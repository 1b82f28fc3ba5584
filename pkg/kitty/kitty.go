package kitty

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// IsKittyTerminal detects if we're running in a Kitty terminal
func IsKittyTerminal() bool {
	return detect(os.Getenv)
}

func detect(getenv func(string) string) bool {
	if strings.Contains(getenv("TERM"), "kitty") {
		return true
	}
	return getenv("KITTY_WINDOW_ID") != "" || getenv("KITTY_PID") != ""
}

// Runner executes the kitten command. Tests swap it out.
type Runner func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error

func execRunner(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// ImageDisplay shows result previews inline in a Kitty terminal
type ImageDisplay struct {
	Out    io.Writer
	Err    io.Writer
	runner Runner
}

// NewImageDisplay creates a new Kitty image display writing to out
func NewImageDisplay(out io.Writer) *ImageDisplay {
	return &ImageDisplay{Out: out, Err: os.Stderr, runner: execRunner}
}

// Available reports whether inline images can be shown
func (d *ImageDisplay) Available() bool {
	if !IsKittyTerminal() {
		return false
	}
	_, err := exec.LookPath("kitten")
	return err == nil
}

// Display streams encoded image data to `kitten icat`, left aligned
func (d *ImageDisplay) Display(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("no image data")
	}

	args := []string{"icat", "--align", "left", "--stdin", "yes"}
	if err := d.runner("kitten", args, bytes.NewReader(data), d.Out, d.Err); err != nil {
		return fmt.Errorf("kitten icat failed: %w", err)
	}
	return nil
}

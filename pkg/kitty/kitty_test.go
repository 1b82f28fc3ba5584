package kitty

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want bool
	}{
		{map[string]string{"TERM": "xterm-kitty"}, true},
		{map[string]string{"KITTY_WINDOW_ID": "1"}, true},
		{map[string]string{"KITTY_PID": "42"}, true},
		{map[string]string{"TERM": "xterm-256color"}, false},
		{map[string]string{}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detect(func(k string) string { return tt.env[k] }), tt.env)
	}
}

func TestDisplay(t *testing.T) {
	var gotName string
	var gotArgs []string
	var gotInput []byte

	d := NewImageDisplay(&bytes.Buffer{})
	d.runner = func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
		gotName, gotArgs = name, args
		gotInput, _ = io.ReadAll(stdin)
		return nil
	}

	require.NoError(t, d.Display([]byte("jpeg")))
	assert.Equal(t, "kitten", gotName)
	assert.Equal(t, []string{"icat", "--align", "left", "--stdin", "yes"}, gotArgs)
	assert.Equal(t, "jpeg", string(gotInput))

	assert.Error(t, d.Display(nil))

	d.runner = func(string, []string, io.Reader, io.Writer, io.Writer) error { return errors.New("exit 1") }
	assert.ErrorContains(t, d.Display([]byte("x")), "kitten icat failed")
}

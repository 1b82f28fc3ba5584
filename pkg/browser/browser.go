package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Starter launches a command without waiting for it
type Starter func(name string, args ...string) error

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Open attempts to open the URL in the default browser
func Open(url string) error {
	return open(runtime.GOOS, url, startCommand)
}

func open(goos, url string, start Starter) error {
	switch goos {
	case "darwin":
		return start("open", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		return start("xdg-open", url)
	case "windows":
		return start("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", goos)
	}
}

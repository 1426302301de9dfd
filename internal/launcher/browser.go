package launcher

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
)

// browserLauncher starts the command that opens a browser. Tests replace it.
var browserLauncher = func(cmd *exec.Cmd) error {
	return cmd.Start()
}

// OpenBrowser opens rawURL in the user's browser. $BROWSER wins over the
// platform default. Only http and https URLs are opened.
func OpenBrowser(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("refusing to open %q: not an http(s) URL", rawURL)
	}

	name, args, err := browserCommand(runtime.GOOS, os.Getenv("BROWSER"), rawURL)
	if err != nil {
		return err
	}

	// The browser outlives us; never Wait.
	if err := browserLauncher(exec.Command(name, args...)); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// browserCommand picks the program that opens rawURL on goos.
func browserCommand(goos, browserEnv, rawURL string) (string, []string, error) {
	if browserEnv != "" {
		return browserEnv, []string{rawURL}, nil
	}

	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{rawURL}, nil
	case "darwin":
		return "open", []string{rawURL}, nil
	case "windows":
		// rundll32 takes the URL as a single argument, so no shell quoting
		// is involved.
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

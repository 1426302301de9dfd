package launcher

import (
	"errors"
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserCommand(t *testing.T) {
	const target = "https://idp.example.com/authorize?state=abc"

	tests := []struct {
		name       string
		goos       string
		browserEnv string
		wantName   string
		wantArgs   []string
		wantErr    bool
	}{
		{name: "linux", goos: "linux", wantName: "xdg-open", wantArgs: []string{target}},
		{name: "freebsd", goos: "freebsd", wantName: "xdg-open", wantArgs: []string{target}},
		{name: "darwin", goos: "darwin", wantName: "open", wantArgs: []string{target}},
		{name: "windows", goos: "windows", wantName: "rundll32", wantArgs: []string{"url.dll,FileProtocolHandler", target}},
		{name: "BROWSER overrides", goos: "darwin", browserEnv: "firefox", wantName: "firefox", wantArgs: []string{target}},
		{name: "unsupported", goos: "plan9", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, tt.browserEnv, target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func stubBrowserLauncher(t *testing.T, fn func(*exec.Cmd) error) {
	t.Helper()
	original := browserLauncher
	browserLauncher = fn
	t.Cleanup(func() { browserLauncher = original })
}

func TestOpenBrowser(t *testing.T) {
	if _, _, err := browserCommand(runtime.GOOS, "", "https://x"); err != nil {
		t.Skip("unsupported platform")
	}
	t.Setenv("BROWSER", "")

	var launched *exec.Cmd
	stubBrowserLauncher(t, func(cmd *exec.Cmd) error {
		launched = cmd
		return nil
	})

	require.NoError(t, OpenBrowser("https://example.com/auth"))
	require.NotNil(t, launched)
	assert.Equal(t, "https://example.com/auth", launched.Args[len(launched.Args)-1])
}

func TestOpenBrowser_RejectsNonHTTP(t *testing.T) {
	stubBrowserLauncher(t, func(*exec.Cmd) error {
		t.Fatal("nothing should be launched")
		return nil
	})

	for _, raw := range []string{"file:///etc/passwd", "javascript:alert(1)", "%zz"} {
		assert.Error(t, OpenBrowser(raw), raw)
	}
}

func TestOpenBrowser_LaunchFailure(t *testing.T) {
	t.Setenv("BROWSER", "my-browser")
	stubBrowserLauncher(t, func(*exec.Cmd) error { return errors.New("exec: not found") })

	assert.Error(t, OpenBrowser("https://example.com"))
}

package browser

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// command returns the platform command that opens url in the default browser
func command(ctx context.Context, goos, url string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.CommandContext(ctx, "open", url), nil
	case "linux", "freebsd", "openbsd":
		return exec.CommandContext(ctx, "xdg-open", url), nil
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("unsupported OS: %s", goos)
	}
}

// Open opens the specified URL in the user's default browser.
func Open(url string) error {
	cmd, err := command(context.Background(), runtime.GOOS, url)
	if err != nil {
		return err
	}
	return cmd.Start()
}

// Opener opens notification clicks in the default browser
type Opener struct{}

func (Opener) OpenWindow(ctx context.Context, url string) error {
	cmd, err := command(ctx, runtime.GOOS, url)
	if err != nil {
		return err
	}
	return cmd.Start()
}

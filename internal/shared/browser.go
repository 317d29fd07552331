package shared

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var getRuntime = func() string { return runtime.GOOS }

// openCommand returns the platform command that opens target with its default application.
func openCommand(target string) (*exec.Cmd, error) {
	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", target), nil
	case "linux":
		return exec.Command("xdg-open", target), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", target), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", rt)
	}
}

// OpenBrowser opens a URL or a local file (such as an exported workbook) with the system default handler.
func OpenBrowser(target string) error {
	if !strings.Contains(target, "://") {
		abs, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", target, err)
		}
		target = abs
	}

	cmd, err := openCommand(target)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}

	return nil
}

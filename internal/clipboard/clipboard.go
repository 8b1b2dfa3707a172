// Package clipboard writes text to the system clipboard.
package clipboard

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
)

// CopyText copies text to the system clipboard. Native tools are tried first;
// when none is installed the portable fallback is used.
func CopyText(text string) error {
	if name, args, ok := copyCommand(runtime.GOOS, exec.LookPath); ok {
		cmd := exec.Command(name, args...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err == nil {
			return nil
		}
	}
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard not supported on %s (install wl-copy or xclip)", runtime.GOOS)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// copyCommand picks the native copy tool for goos.
func copyCommand(goos string, lookPath func(string) (string, error)) (string, []string, bool) {
	switch goos {
	case "darwin":
		return "pbcopy", nil, true
	case "linux":
		// Try wl-copy first (Wayland)
		if _, err := lookPath("wl-copy"); err == nil {
			return "wl-copy", nil, true
		}
		// Fall back to xclip (X11)
		if _, err := lookPath("xclip"); err == nil {
			return "xclip", []string{"-selection", "clipboard"}, true
		}
	}
	return "", nil, false
}

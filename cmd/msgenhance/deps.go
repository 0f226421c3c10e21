package main

import (
	"io"
	"os"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/alnah/go-msgenhance/internal/fileutil"
	"github.com/alnah/go-msgenhance/internal/hints"
)

// Dependencies holds injectable dependencies for testability.
type Dependencies struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer

	// Env describes the environment for browser hints.
	Env func() hints.Env

	// LookBrowser locates the Chrome binary used for diagrams.
	LookBrowser func() (path string, found bool)
}

// DefaultDeps returns production dependencies.
func DefaultDeps() *Dependencies {
	return &Dependencies{
		Now:         time.Now,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Env:         hints.DetectEnv,
		LookBrowser: lookBrowser,
	}
}

// lookBrowser prefers ROD_BROWSER_BIN, like the rod launcher does.
func lookBrowser() (string, bool) {
	if p := os.Getenv("ROD_BROWSER_BIN"); p != "" {
		return p, fileutil.FileExists(p)
	}
	return launcher.LookPath()
}

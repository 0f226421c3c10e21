// Package hints appends actionable suggestions to CLI errors and warnings.
// Every hint renders as "\n  hint: <text>".
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-msgenhance/internal/fileutil"
)

// Env describes the parts of the environment that change browser advice.
type Env struct {
	CI         bool
	Container  bool
	NoSandbox  bool
	BrowserBin bool
}

// DetectEnv inspects the process environment.
func DetectEnv() Env {
	return Env{
		CI: os.Getenv("CI") != "" ||
			os.Getenv("GITHUB_ACTIONS") != "" ||
			os.Getenv("GITLAB_CI") != "" ||
			os.Getenv("JENKINS_URL") != "",
		Container:  fileutil.FileExists("/.dockerenv"),
		NoSandbox:  os.Getenv("ROD_NO_SANDBOX") == "1",
		BrowserBin: os.Getenv("ROD_BROWSER_BIN") != "",
	}
}

// ForBrowser suggests rod settings for launching the diagram browser.
func ForBrowser(env Env) string {
	var hints []string
	if (env.CI || env.Container) && !env.NoSandbox {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if !env.BrowserBin {
		hints = append(hints, "set ROD_BROWSER_BIN to use a local Chrome")
	}
	return join(hints)
}

// ForRenderer explains how to make a failed renderer available.
// Renderer names follow the enhancer: "katex", "mermaid", "grammar:<lang>".
func ForRenderer(name string, env Env) string {
	switch {
	case name == "katex":
		return join([]string{
			"put katex.min.js and katex.min.css in the --assets directory",
			"or use --math mathml",
		})
	case name == "mermaid":
		return format("put mermaid.min.js in the --assets directory") + ForBrowser(env)
	case strings.HasPrefix(name, "grammar:"):
		lang := strings.TrimPrefix(name, "grammar:")
		return format("add grammars/" + lang + ".xml to the --assets directory")
	default:
		return ""
	}
}

// ForAssetDir returns a hint for an unusable --assets directory.
func ForAssetDir() string {
	return format("--assets must name an existing, readable directory")
}

// ForRedis returns a hint for an unreachable settings store.
func ForRedis(addr string) string {
	return format("check that redis is listening on " + addr + " or use --settings with a YAML file")
}

// ForConfigNotFound suggests --config, plus the user config location when
// it appears among the searched paths.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"
	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-msgenhance") {
			hint += " or create " + p
			break
		}
	}
	return format(hint)
}

// ForOutputDirectory returns a hint for unwritable output paths.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForMathBackend lists the accepted --math values.
func ForMathBackend(available []string) string {
	if len(available) == 0 {
		return ""
	}
	return format("available: " + strings.Join(available, ", "))
}

func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

func join(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/alnah/go-msgenhance/internal/i18n"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: msgenhance <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  render     Render markdown messages to an enhanced HTML transcript")
	fmt.Fprintln(w, "  doctor     Check browser, assets and settings store")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'msgenhance help <command>' for details on a specific command.")
}

// printRenderUsage prints usage for the render command.
func printRenderUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: msgenhance render <file.md>... [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render each markdown file as one chat message, enhance it, and write")
	fmt.Fprintln(w, "the transcript as a single HTML document.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file or directory (default: first input with .html)")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>         Diagram render workers (0 = auto)")
	fmt.Fprintln(w, "      --standalone          Inline stylesheets (default true)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Settings:")
	fmt.Fprintln(w, "      --settings <path>     YAML file with enableKatex, enableMermaid, ...")
	fmt.Fprintln(w, "      --redis-addr <addr>   Read settings from a Redis hash")
	fmt.Fprintln(w, "      --redis-key <key>     Redis hash name (default msgenhance:settings)")
	fmt.Fprintln(w, "      --lang <tag>          Label language: "+strings.Join(i18n.New().Languages(), ", "))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "      --math <name>         Math backend: katex, mathml")
	fmt.Fprintln(w, "      --assets <dir>        Directory with katex.min.js, mermaid.min.js, ...")
	fmt.Fprintln(w, "      --asset-base <url>    URL prefix assets are referenced under")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show debug logs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Settings precedence: --redis-addr, then --settings, then the config")
	fmt.Fprintln(w, "file's settings map. Missing flags default to enabled.")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: msgenhance doctor [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that diagrams and math can render: Chrome, renderer bundles,")
	fmt.Fprintln(w, "grammars and the settings store.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                Output in JSON format")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "      --assets <dir>        Directory with katex.min.js, mermaid.min.js, ...")
	fmt.Fprintln(w, "      --redis-addr <addr>   Check this Redis settings server")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exits 1 when a check fails. Warnings keep exit code 0.")
}

// runHelp prints help for a command.
func runHelp(args []string, deps *Dependencies) {
	if len(args) == 0 {
		printUsage(deps.Stdout)
		return
	}

	switch args[0] {
	case "render":
		printRenderUsage(deps.Stdout)
	case "doctor":
		printDoctorUsage(deps.Stdout)
	case "version":
		fmt.Fprintln(deps.Stdout, "Usage: msgenhance version")
		fmt.Fprintln(deps.Stdout)
		fmt.Fprintln(deps.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(deps.Stdout, "Usage: msgenhance help [command]")
		fmt.Fprintln(deps.Stdout)
		fmt.Fprintln(deps.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(deps.Stderr, "Unknown command: %s\n", args[0])
		printUsage(deps.Stderr)
	}
}

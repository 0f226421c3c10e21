package main

import (
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-msgenhance/internal/i18n"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// settingsFlags selects where plugin settings come from.
type settingsFlags struct {
	file      string
	redisAddr string
	redisKey  string
	lang      string
}

// assetFlags holds asset-related flags.
type assetFlags struct {
	dir  string // Override asset directory
	base string // URL prefix assets are referenced under
}

// renderFlags holds all flags for the render command.
type renderFlags struct {
	common     commonFlags
	output     string
	workers    int
	workersSet bool
	math       string
	standalone bool
	settings   settingsFlags
	assets     assetFlags
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs")
}

// addSettingsFlags adds settings source flags to a FlagSet.
func addSettingsFlags(fs *flag.FlagSet, f *settingsFlags) {
	fs.StringVar(&f.file, "settings", "", "YAML file holding plugin settings")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "read plugin settings from this Redis server")
	fs.StringVar(&f.redisKey, "redis-key", "", "Redis hash holding plugin settings")
	fs.StringVar(&f.lang, "lang", "", "label language ("+strings.Join(i18n.New().Languages(), ", ")+")")
}

// addAssetFlags adds asset flags to a FlagSet.
func addAssetFlags(fs *flag.FlagSet, f *assetFlags) {
	fs.StringVar(&f.dir, "assets", "", "directory holding renderer assets")
	fs.StringVar(&f.base, "asset-base", "", "URL prefix for renderer assets")
}

// parseRenderFlags parses render command flags and returns positional args.
func parseRenderFlags(args []string, usage io.Writer) (*renderFlags, []string, error) {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &renderFlags{}

	// I/O flags
	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "diagram render workers (0 = auto)")
	fs.StringVar(&f.math, "math", "", "math backend: katex, mathml")
	fs.BoolVar(&f.standalone, "standalone", true, "inline stylesheets into the output")

	// Flag groups
	addCommonFlags(fs, &f.common)
	addSettingsFlags(fs, &f.settings)
	addAssetFlags(fs, &f.assets)

	fs.Usage = func() { printRenderUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	f.workersSet = fs.Changed("workers")

	return f, fs.Args(), nil
}

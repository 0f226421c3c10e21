package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"

	"github.com/alnah/go-msgenhance/internal/assets"
	"github.com/alnah/go-msgenhance/internal/config"
	"github.com/alnah/go-msgenhance/internal/hints"
	"github.com/alnah/go-msgenhance/internal/i18n"
)

// Doctor status values.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// doctorFlags holds flags for the doctor command.
type doctorFlags struct {
	json      bool
	config    string
	assets    string
	redisAddr string
}

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status    string       `json:"status"`
	Browser   browserInfo  `json:"browser"`
	Assets    assetInfo    `json:"assets"`
	Settings  settingsInfo `json:"settings"`
	Languages []string     `json:"languages"`
	Env       envInfo      `json:"environment"`
	Warnings  []string     `json:"warnings,omitempty"`
	Errors    []string     `json:"errors,omitempty"`
}

type browserInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

type assetInfo struct {
	Dir      string          `json:"dir,omitempty"`
	Math     string          `json:"math"`
	Bundles  map[string]bool `json:"bundles"`
	Grammars []string        `json:"grammars"`
}

type settingsInfo struct {
	Source    string `json:"source"`
	Addr      string `json:"addr,omitempty"`
	Reachable bool   `json:"reachable,omitempty"`
}

type envInfo struct {
	CI        bool `json:"ci"`
	Container bool `json:"container"`
}

// rendererBundles lists the bundles each script renderer needs.
var rendererBundles = []struct {
	renderer string
	names    []string
}{
	{"katex", []string{assets.KatexStylesheet, assets.KatexScript}},
	{"mermaid", []string{assets.MermaidScript}},
}

func runDoctorCmd(args []string, deps *Dependencies) int {
	f, err := parseDoctorFlags(args, deps.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(deps.Stderr, err)
		return ExitUsage
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	result := runDoctor(ctx, f, deps)
	if f.json {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintln(deps.Stderr, err)
			return ExitGeneral
		}
	} else {
		printDoctorResult(deps.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

func parseDoctorFlags(args []string, usage io.Writer) (*doctorFlags, error) {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &doctorFlags{}

	fs.BoolVar(&f.json, "json", false, "output in JSON format")
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.StringVar(&f.assets, "assets", "", "directory holding renderer assets")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "check this Redis settings server")
	fs.Usage = func() { printDoctorUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("doctor takes no arguments, got %q", fs.Arg(0))
	}
	return f, nil
}

// runDoctor checks everything a render run depends on. It never fails;
// problems are collected into the result.
func runDoctor(ctx context.Context, f *doctorFlags, deps *Dependencies) *doctorResult {
	env := deps.Env()
	result := &doctorResult{
		Languages: i18n.New().Languages(),
		Env:       envInfo{CI: env.CI, Container: env.Container},
	}

	cfg := config.DefaultConfig()
	if f.config != "" {
		loaded, err := config.LoadConfig(f.config)
		if err != nil {
			result.Errors = append(result.Errors, "loading config: "+err.Error())
		} else {
			cfg = loaded
		}
	}
	if f.assets != "" {
		cfg.Assets.BasePath = f.assets
	}
	if f.redisAddr != "" {
		cfg.Redis.Addr = f.redisAddr
	}

	checkBrowser(result, deps.LookBrowser, env)
	checkAssets(result, cfg, env)
	checkSettings(ctx, result, cfg)

	switch {
	case len(result.Errors) > 0:
		result.Status = statusErrors
	case len(result.Warnings) > 0:
		result.Status = statusWarnings
	default:
		result.Status = statusReady
	}
	return result
}

func checkBrowser(result *doctorResult, look func() (string, bool), env hints.Env) {
	path, found := look()
	result.Browser = browserInfo{Found: found, Path: path, Sandbox: !env.NoSandbox}
	if !found {
		result.Warnings = append(result.Warnings, "Chrome not found, diagrams stay as code"+hints.ForBrowser(env))
		return
	}
	if (env.CI || env.Container) && !env.NoSandbox {
		result.Warnings = append(result.Warnings, "Chrome sandbox enabled in a container or CI"+hints.ForBrowser(env))
	}
}

func checkAssets(result *doctorResult, cfg *config.Config, env hints.Env) {
	result.Assets = assetInfo{
		Dir:     cfg.Assets.BasePath,
		Math:    cfg.Render.Math,
		Bundles: make(map[string]bool),
	}
	if result.Assets.Math == "" {
		result.Assets.Math = config.MathKatex
	}

	resolver, err := assets.NewResolver(cfg.Assets.BasePath)
	if err != nil {
		result.Errors = append(result.Errors, "asset directory: "+err.Error()+hints.ForAssetDir())
		return
	}
	result.Assets.Grammars = resolver.EmbeddedGrammars()

	for _, rb := range rendererBundles {
		var missing []string
		for _, name := range rb.names {
			_, err := resolver.Load(name)
			result.Assets.Bundles[name] = err == nil
			if err != nil {
				missing = append(missing, name)
			}
		}
		// The MathML backend renders without the KaTeX bundle.
		if len(missing) == 0 || (rb.renderer == "katex" && result.Assets.Math != config.MathKatex) {
			continue
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s unavailable, missing %s%s", rb.renderer, strings.Join(missing, ", "), hints.ForRenderer(rb.renderer, env)))
	}
}

func checkSettings(ctx context.Context, result *doctorResult, cfg *config.Config) {
	if cfg.Redis.Addr == "" {
		result.Settings = settingsInfo{Source: "config"}
		return
	}
	result.Settings = settingsInfo{Source: "redis", Addr: cfg.Redis.Addr}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = client.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		result.Errors = append(result.Errors, "settings store unreachable: "+err.Error()+hints.ForRedis(cfg.Redis.Addr))
		return
	}
	result.Settings.Reachable = true
}

func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "Browser")
	if r.Browser.Found {
		fmt.Fprintf(w, "  [OK] %s\n", r.Browser.Path)
	} else {
		fmt.Fprintln(w, "  [!!] not found")
	}
	fmt.Fprintf(w, "  sandbox: %s\n", enabledStr(r.Browser.Sandbox))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Assets")
	if r.Assets.Dir != "" {
		fmt.Fprintf(w, "  directory: %s\n", r.Assets.Dir)
	} else {
		fmt.Fprintln(w, "  directory: embedded only")
	}
	fmt.Fprintf(w, "  math: %s\n", r.Assets.Math)
	for _, rb := range rendererBundles {
		for _, name := range rb.names {
			mark := "[OK]"
			if !r.Assets.Bundles[name] {
				mark = "[--]"
			}
			fmt.Fprintf(w, "  %s %s\n", mark, name)
		}
	}
	if len(r.Assets.Grammars) > 0 {
		fmt.Fprintf(w, "  grammars: %s\n", strings.Join(r.Assets.Grammars, ", "))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Settings")
	if r.Settings.Source == "redis" {
		fmt.Fprintf(w, "  redis %s: %s\n", r.Settings.Addr, reachableStr(r.Settings.Reachable))
	} else {
		fmt.Fprintln(w, "  source: config")
	}
	fmt.Fprintf(w, "  languages: %s\n", strings.Join(r.Languages, ", "))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  CI: %s\n", yesNo(r.Env.CI))
	fmt.Fprintf(w, "  container: %s\n", yesNo(r.Env.Container))

	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "\n[WARN] %s", warn)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "\n[ERROR] %s", e)
	}
	if len(r.Warnings)+len(r.Errors) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Status: %s\n", strings.ToUpper(r.Status))
}

func enabledStr(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func reachableStr(b bool) string {
	if b {
		return "reachable"
	}
	return "unreachable"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

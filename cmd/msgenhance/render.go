package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	msgenhance "github.com/alnah/go-msgenhance"
	"github.com/alnah/go-msgenhance/internal/assets"
	"github.com/alnah/go-msgenhance/internal/config"
	"github.com/alnah/go-msgenhance/internal/fileutil"
	"github.com/alnah/go-msgenhance/internal/hints"
	"github.com/alnah/go-msgenhance/internal/loader"
	"github.com/alnah/go-msgenhance/internal/pipeline"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput            = errors.New("no input specified")
	ErrReadMarkdown       = errors.New("failed to read markdown file")
	ErrWriteHTML          = errors.New("failed to write HTML file")
	ErrInvalidExtension   = errors.New("file must have .md or .markdown extension")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// filePermissions is rw-r--r--: owner read+write, others read.
const filePermissions = 0o644

// Compile-time interface implementation checks.
var (
	_ pipeline.HTMLConverter   = (*pipeline.GoldmarkConverter)(nil)
	_ pipeline.CSSInjector     = (*pipeline.CSSInjection)(nil)
	_ pipeline.ResourceFetcher = (*loader.RoutingFetcher)(nil)
)

// runRender renders every input file as one message of a single transcript.
func runRender(ctx context.Context, inputs []string, flags *renderFlags, deps *Dependencies) error {
	if len(inputs) == 0 {
		return ErrNoInput
	}
	for _, in := range inputs {
		if err := validateMarkdownExtension(in); err != nil {
			return err
		}
	}
	if err := validateWorkers(flags.workers); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if flags.common.config != "" {
		var err error
		cfg, err = config.LoadConfig(flags.common.config)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return fmt.Errorf("loading config: %w%s", err, hints.ForConfigNotFound(config.SearchPaths(flags.common.config)))
			}
			return fmt.Errorf("loading config: %w", err)
		}
	}

	// Merge CLI flags into config (CLI wins)
	mergeFlags(flags, cfg)
	backend, ok := msgenhance.ParseMathBackend(cfg.Render.Math)
	if !ok {
		return fmt.Errorf("%w: math backend %q%s", config.ErrInvalidValue, cfg.Render.Math, hints.ForMathBackend(config.MathBackends))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(deps.Stderr, flags.common.verbose, flags.common.quiet)
	log.Debug().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("starting render")

	resolver, err := assets.NewResolver(cfg.Assets.BasePath)
	if err != nil {
		return fmt.Errorf("%w: %v%s", msgenhance.ErrInvalidAssetPath, err, hints.ForAssetDir())
	}
	log.Debug().Str("dir", resolver.Dir()).Strs("grammars", resolver.EmbeddedGrammars()).Msg("assets resolved")
	base := cfg.Assets.BaseURL
	if base == "" {
		base = msgenhance.DefaultAssetBase
	}
	fetcher := loader.NewRoutingFetcher(
		loader.NewHTTPFetcher(nil),
		loader.NewAssetFetcher(base, resolver),
	)

	src, closeSettings := buildSettingsSource(ctx, flags, cfg, log)
	defer func() {
		if err := closeSettings(); err != nil {
			log.Debug().Err(err).Msg("closing settings source")
		}
	}()

	enh, err := msgenhance.NewEnhancer(
		msgenhance.WithLogger(log),
		msgenhance.WithSettingsSource(src),
		msgenhance.WithFetcher(fetcher),
		msgenhance.WithAssetBase(base),
		msgenhance.WithMathBackend(backend),
		msgenhance.WithWorkers(cfg.Render.Workers),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := enh.Close(); err != nil {
			log.Debug().Err(err).Msg("closing enhancer")
		}
	}()

	outPath := resolveOutputPath(inputs[0], flags.output)
	start := time.Now()

	conv := pipeline.NewGoldmarkConverter()
	for _, in := range inputs {
		if err := renderMessage(ctx, enh, conv, in, filepath.Dir(outPath), log); err != nil {
			return err
		}
	}

	enh.Wait()
	reportRenderers(enh.RendererStates(), deps.Env(), log)

	out, err := enh.Document().Render()
	if err != nil {
		return fmt.Errorf("rendering document: %w", err)
	}

	var css strings.Builder
	if err := enh.WriteHighlightCSS(&css); err != nil {
		return fmt.Errorf("writing highlight styles: %w", err)
	}
	out = (&pipeline.CSSInjection{}).InjectCSS(ctx, out, css.String())

	if flags.standalone {
		out, err = pipeline.NewStandalone(fetcher).Inline(ctx, out)
		if err != nil {
			return err
		}
	}

	if err := fileutil.WriteFileAtomic(outPath, []byte(out), filePermissions); err != nil {
		return fmt.Errorf("%w: %v%s", ErrWriteHTML, err, hints.ForOutputDirectory())
	}

	log.Info().
		Str("output", outPath).
		Int("messages", len(inputs)).
		Dur("duration", time.Since(start)).
		Msg("transcript written")
	return nil
}

// renderMessage converts one markdown file, runs it through the hook and
// attaches the result to the transcript.
func renderMessage(ctx context.Context, enh *msgenhance.Enhancer, conv pipeline.HTMLConverter, path, outputDir string, log zerolog.Logger) error {
	md, err := os.ReadFile(path) // #nosec G304 -- user-provided path
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReadMarkdown, path, err)
	}

	content, err := conv.ToHTML(ctx, string(md))
	if err != nil {
		return fmt.Errorf("converting %s: %w", path, err)
	}
	content, err = pipeline.RebaseAttachments(content, filepath.Dir(path), outputDir)
	if err != nil {
		return fmt.Errorf("rewriting paths in %s: %w", path, err)
	}

	res := enh.OnMessage(ctx, msgenhance.Message{Content: content})
	if res.Success {
		content = res.Content
	}

	article := `<article class="message" data-source="` + html.EscapeString(filepath.Base(path)) + `">` +
		content + `</article>`
	if err := enh.Document().AppendHTML(article); err != nil {
		return fmt.Errorf("attaching %s: %w", path, err)
	}

	log.Debug().Str("file", path).Bool("enhanced", res.Success).Msg("message rendered")
	return nil
}

// reportRenderers warns about renderers that could not be activated.
func reportRenderers(states map[string]string, env hints.Env, log zerolog.Logger) {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		state := states[name]
		log.Debug().Str("renderer", name).Str("state", state).Msg("renderer state")
		if state != "failed" {
			continue
		}
		log.Warn().Str("renderer", name).Msg("renderer unavailable, content left as is" + hints.ForRenderer(name, env))
	}
}

// mergeFlags applies explicitly set flags over the config.
func mergeFlags(flags *renderFlags, cfg *config.Config) {
	if flags.assets.dir != "" {
		cfg.Assets.BasePath = flags.assets.dir
	}
	if flags.assets.base != "" {
		cfg.Assets.BaseURL = flags.assets.base
	}
	if flags.workersSet {
		cfg.Render.Workers = flags.workers
	}
	if flags.math != "" {
		cfg.Render.Math = flags.math
	}
	if flags.settings.redisAddr != "" {
		cfg.Redis.Addr = flags.settings.redisAddr
	}
	if flags.settings.redisKey != "" {
		cfg.Redis.Key = flags.settings.redisKey
	}
}

// resolveOutputPath picks the transcript path. An existing directory or a
// path ending in a separator receives <first input>.html.
func resolveOutputPath(firstInput, output string) string {
	name := fileutil.ReplaceExt(firstInput, ".html")
	if output == "" {
		return name
	}
	if strings.HasSuffix(output, string(filepath.Separator)) || strings.HasSuffix(output, "/") {
		return filepath.Join(output, filepath.Base(name))
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, filepath.Base(name))
	}
	return output
}

func validateMarkdownExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".md" && ext != ".markdown" {
		return fmt.Errorf("%w: %s", ErrInvalidExtension, path)
	}
	return nil
}

func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0)", ErrInvalidWorkerCount, n)
	}
	if n > config.MaxWorkers {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, config.MaxWorkers)
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/alnah/go-msgenhance/internal/assets"
	"github.com/alnah/go-msgenhance/internal/hints"
)

// allBundles holds every renderer bundle the doctor looks for.
var allBundles = map[string]string{
	assets.KatexStylesheet: ".katex{}",
	assets.KatexScript:     "var katex = {};",
	assets.MermaidScript:   "var mermaid = {};",
}

// doctorDeps returns test dependencies with a browser lookup that finds path.
func doctorDeps(path string, env hints.Env) *Dependencies {
	deps, _, _ := testDeps()
	deps.Env = func() hints.Env { return env }
	deps.LookBrowser = func() (string, bool) { return path, path != "" }
	return deps
}

// ---------------------------------------------------------------------------
// TestRunDoctor - Status and collected diagnostics
// ---------------------------------------------------------------------------

func TestRunDoctor(t *testing.T) {
	t.Parallel()

	full := setupTestDir(t, allBundles)
	mermaidOnly := setupTestDir(t, map[string]string{assets.MermaidScript: "var mermaid = {};"})
	mathml := setupTestDir(t, map[string]string{
		assets.MermaidScript: "var mermaid = {};",
		"mathml.yaml":        "render:\n  math: mathml\n",
	})

	tests := []struct {
		name         string
		flags        doctorFlags
		browser      string
		env          hints.Env
		wantStatus   string
		wantWarnings []string
		wantErrors   []string
	}{
		{
			name:       "everything present",
			flags:      doctorFlags{assets: full},
			browser:    "/usr/bin/chromium",
			env:        hints.Env{NoSandbox: true},
			wantStatus: statusReady,
		},
		{
			name:         "embedded assets only",
			browser:      "/usr/bin/chromium",
			wantStatus:   statusWarnings,
			wantWarnings: []string{"katex unavailable", "mermaid unavailable", "--math mathml"},
		},
		{
			name:         "no browser",
			flags:        doctorFlags{assets: full},
			wantStatus:   statusWarnings,
			wantWarnings: []string{"Chrome not found", "ROD_BROWSER_BIN"},
		},
		{
			name:         "sandbox inside container",
			flags:        doctorFlags{assets: full},
			browser:      "/usr/bin/chromium",
			env:          hints.Env{Container: true},
			wantStatus:   statusWarnings,
			wantWarnings: []string{"sandbox enabled", "ROD_NO_SANDBOX=1"},
		},
		{
			name:         "missing katex bundle",
			flags:        doctorFlags{assets: mermaidOnly},
			browser:      "/usr/bin/chromium",
			wantStatus:   statusWarnings,
			wantWarnings: []string{"missing katex.min.css, katex.min.js"},
		},
		{
			name:       "mathml backend needs no katex bundle",
			flags:      doctorFlags{assets: mathml, config: filepath.Join(mathml, "mathml.yaml")},
			browser:    "/usr/bin/chromium",
			env:        hints.Env{NoSandbox: true},
			wantStatus: statusReady,
		},
		{
			name:       "asset directory missing",
			flags:      doctorFlags{assets: filepath.Join(full, "nope")},
			browser:    "/usr/bin/chromium",
			wantStatus: statusErrors,
			wantErrors: []string{"asset directory", "--assets must name"},
		},
		{
			name:       "config missing",
			flags:      doctorFlags{assets: full, config: filepath.Join(full, "nope.yaml")},
			browser:    "/usr/bin/chromium",
			wantStatus: statusErrors,
			wantErrors: []string{"loading config"},
		},
		{
			name:       "redis unreachable",
			flags:      doctorFlags{assets: full, redisAddr: "127.0.0.1:1"},
			browser:    "/usr/bin/chromium",
			env:        hints.Env{NoSandbox: true},
			wantStatus: statusErrors,
			wantErrors: []string{"settings store unreachable", "127.0.0.1:1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := runDoctor(context.Background(), &tt.flags, doctorDeps(tt.browser, tt.env))

			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q\nwarnings: %v\nerrors: %v", got.Status, tt.wantStatus, got.Warnings, got.Errors)
			}
			warnings := strings.Join(got.Warnings, "\n")
			for _, want := range tt.wantWarnings {
				if !strings.Contains(warnings, want) {
					t.Errorf("warnings = %q, want them to contain %q", warnings, want)
				}
			}
			errs := strings.Join(got.Errors, "\n")
			for _, want := range tt.wantErrors {
				if !strings.Contains(errs, want) {
					t.Errorf("errors = %q, want them to contain %q", errs, want)
				}
			}
			if strings.Join(got.Languages, ", ") != "en, zh-Hans" {
				t.Errorf("Languages = %v, want [en zh-Hans]", got.Languages)
			}
		})
	}
}

func TestRunDoctor_RedisReachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	dir := setupTestDir(t, allBundles)

	got := runDoctor(context.Background(), &doctorFlags{assets: dir, redisAddr: mr.Addr()},
		doctorDeps("/usr/bin/chromium", hints.Env{NoSandbox: true}))

	if got.Status != statusReady {
		t.Errorf("Status = %q, want %q (errors: %v)", got.Status, statusReady, got.Errors)
	}
	if got.Settings.Source != "redis" || !got.Settings.Reachable {
		t.Errorf("Settings = %+v, want reachable redis", got.Settings)
	}
}

// ---------------------------------------------------------------------------
// TestRunDoctorCmd - Output formats and exit codes
// ---------------------------------------------------------------------------

func TestRunDoctorCmd_JSON(t *testing.T) {
	t.Parallel()

	dir := setupTestDir(t, allBundles)
	deps, stdout, stderr := testDeps()
	deps.LookBrowser = func() (string, bool) { return "/opt/chrome", true }

	if code := runMain([]string{"doctor", "--json", "--assets", dir}, deps); code != ExitSuccess {
		t.Fatalf("exit code = %d, want %d\nstderr: %s", code, ExitSuccess, stderr)
	}

	var got doctorResult
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if got.Status != statusReady {
		t.Errorf("status = %q, want %q", got.Status, statusReady)
	}
	if got.Browser.Path != "/opt/chrome" {
		t.Errorf("browser.path = %q, want /opt/chrome", got.Browser.Path)
	}
	for name := range allBundles {
		if !got.Assets.Bundles[name] {
			t.Errorf("bundles[%q] = false, want true", name)
		}
	}
	if len(got.Assets.Grammars) == 0 {
		t.Error("grammars is empty, want the embedded grammars")
	}
}

func TestRunDoctorCmd_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantCode int
		want     []string
	}{
		{
			name:     "warnings keep exit code zero",
			args:     []string{"doctor"},
			wantCode: ExitSuccess,
			want:     []string{"[!!] not found", "[--] mermaid.min.js", "languages: en, zh-Hans", "[WARN]", "Status: WARNINGS"},
		},
		{
			name:     "errors exit one",
			args:     []string{"doctor", "--assets", filepath.Join(t.TempDir(), "nope")},
			wantCode: ExitGeneral,
			want:     []string{"[ERROR] asset directory", "Status: ERRORS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			deps, stdout, stderr := testDeps()
			if code := runMain(tt.args, deps); code != tt.wantCode {
				t.Errorf("exit code = %d, want %d\nstderr: %s", code, tt.wantCode, stderr)
			}
			for _, want := range tt.want {
				if !strings.Contains(stdout.String(), want) {
					t.Errorf("stdout = %q, want it to contain %q", stdout, want)
				}
			}
		})
	}
}

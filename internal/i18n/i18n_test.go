package i18n

import "testing"

func TestTranslator(t *testing.T) {
	t.Parallel()

	c := New()

	tests := []struct {
		name string
		lang string
		key  string
		want string
	}{
		{name: "english", lang: "en", key: KeyMathError, want: "Math rendering error"},
		{name: "regional english", lang: "en-GB", key: KeyCopyDone, want: "Copied!"},
		{name: "simplified chinese", lang: "zh-Hans", key: KeyDiagramLoading, want: "正在渲染图表..."},
		{name: "chinese by region", lang: "zh-CN", key: KeyCopyLabel, want: "复制"},
		{name: "unsupported falls back", lang: "fr", key: KeyDiagramError, want: "Diagram rendering error"},
		{name: "malformed falls back", lang: "not a tag!", key: KeyMathError, want: "Math rendering error"},
		{name: "empty falls back", lang: "", key: KeyMathError, want: "Math rendering error"},
		{name: "unknown key echoes", lang: "en", key: "no.such.key", want: "no.such.key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := c.Translator(tt.lang).Translate(tt.key); got != tt.want {
				t.Errorf("Translator(%q).Translate(%q) = %q, want %q", tt.lang, tt.key, got, tt.want)
			}
		})
	}
}

func TestCatalogComplete(t *testing.T) {
	t.Parallel()

	keys := []string{KeyMathError, KeyDiagramError, KeyDiagramLoading, KeyCopyLabel, KeyCopyDone}
	for tag, msgs := range messages {
		for _, key := range keys {
			if msgs[key] == "" {
				t.Errorf("language %s has no text for %q", tag, key)
			}
		}
	}
}

func TestTranslatorFunc(t *testing.T) {
	t.Parallel()

	tr := TranslatorFunc(func(key string) string { return "[" + key + "]" })
	if got := tr.Translate("x"); got != "[x]" {
		t.Errorf("Translate() = %q, want %q", got, "[x]")
	}
}

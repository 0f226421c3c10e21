// Package i18n holds the localized labels shown in enhanced messages.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Label keys.
const (
	KeyMathError      = "math.error"
	KeyDiagramError   = "diagram.error"
	KeyDiagramLoading = "diagram.loading"
	KeyCopyLabel      = "copy.label"
	KeyCopyDone       = "copy.done"
)

// Translator resolves a label key to text in one language.
type Translator interface {
	Translate(key string) string
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(key string) string

// Translate calls f(key).
func (f TranslatorFunc) Translate(key string) string {
	return f(key)
}

var messages = map[language.Tag]map[string]string{
	language.English: {
		KeyMathError:      "Math rendering error",
		KeyDiagramError:   "Diagram rendering error",
		KeyDiagramLoading: "Rendering diagram...",
		KeyCopyLabel:      "Copy",
		KeyCopyDone:       "Copied!",
	},
	language.SimplifiedChinese: {
		KeyMathError:      "公式渲染错误",
		KeyDiagramError:   "图表渲染错误",
		KeyDiagramLoading: "正在渲染图表...",
		KeyCopyLabel:      "复制",
		KeyCopyDone:       "已复制!",
	},
}

// supported lists catalog languages; the first is the fallback.
var supported = []language.Tag{language.English, language.SimplifiedChinese}

// Catalog resolves translators for the supported languages.
type Catalog struct {
	cat     catalog.Catalog
	matcher language.Matcher
}

// New builds the label catalog.
func New() *Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for key, text := range msgs {
			// Keys and texts are constants; SetString only fails on malformed tags.
			_ = b.SetString(tag, key, text)
		}
	}
	return &Catalog{cat: b, matcher: language.NewMatcher(supported)}
}

// Translator returns a Translator for lang, a BCP 47 tag such as "en",
// "zh-CN" or "zh-Hans". Unknown or malformed tags fall back to English.
func (c *Catalog) Translator(lang string) Translator {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	_, idx, _ := c.matcher.Match(tag)
	return &printer{p: message.NewPrinter(supported[idx], message.Catalog(c.cat))}
}

// Languages returns the supported language tags.
func (c *Catalog) Languages() []string {
	out := make([]string, len(supported))
	for i, t := range supported {
		out[i] = t.String()
	}
	return out
}

type printer struct {
	p *message.Printer
}

// Translate returns the label for key, or key itself if unknown.
func (p *printer) Translate(key string) string {
	return p.p.Sprintf(key)
}

package diagram

import "strings"

// The five entities the upstream renderer escapes in code blocks.
var (
	sourceDecoder = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&amp;", "&",
	)
	sourceEncoder = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
)

// DecodeSource reverses the code-block escaping, yielding raw grammar text.
func DecodeSource(s string) string {
	return sourceDecoder.Replace(s)
}

// EncodeSource escapes raw grammar text for display inside HTML.
func EncodeSource(s string) string {
	return sourceEncoder.Replace(s)
}

// Package pipeline holds the string-level stages around message enhancement.
//
// Enhancement passes share the Result contract defined here. The rest of the
// package serves the CLI, which has no chat client in front of it:
//   - Markdown preprocessing (line normalization, math protection)
//   - Markdown to HTML conversion via Goldmark, the way the chat client
//     renders a message before the hook sees it
//   - Relative path rebasing for output written away from its source
//   - Stylesheet inlining so the written document stands alone
package pipeline

// Package msgenhance post-processes chat messages that were already rendered
// from markdown to HTML, adding math formulas, diagrams, copy buttons on code
// blocks and highlighting for extra languages.
//
// # Quick Start
//
// Create an enhancer, hand it each message, and close it when done:
//
//	enh, err := msgenhance.NewEnhancer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer enh.Close()
//
//	res := enh.OnMessage(ctx, msgenhance.Message{Content: html})
//	if res.Success {
//	    html = res.Content
//	}
//
// A HookResult with Success false means nothing changed and the host should
// keep the original content.
//
// # Enhancement Pipeline
//
// Every message goes through these stages:
//
//  1. Settings lookup (defaults when the source fails)
//  2. Math pass: $$...$$, \[...\], $...$ and \(...\) rendered in place
//  3. Diagram pass: mermaid code blocks swapped for placeholder containers
//     filled later by background tasks
//  4. Copy buttons and extra grammars, applied to the live document
//
// Renderers are activated lazily on first use. A renderer that fails to load
// is skipped for that message and retried on the next one.
//
// # Configuration
//
// Use functional options to customize the enhancer:
//
//	enh, err := msgenhance.NewEnhancer(
//	    msgenhance.WithSettingsSource(msgenhance.FileSettings("settings.yaml")),
//	    msgenhance.WithAssetBase("https://cdn.example.com/msgenhance"),
//	    msgenhance.WithMathBackend(msgenhance.MathBackendMathML),
//	    msgenhance.WithWorkers(4),
//	)
//
// # Document
//
// Diagram rendering, copy buttons and highlighting act on a shared Document
// that the host appends message content to. Call Wait before reading it when
// every scheduled diagram must be rendered.
package msgenhance

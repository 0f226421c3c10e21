// Package diagram turns fenced Mermaid blocks into diagrams.
//
// The upstream markdown renderer emits each block as
// <pre><code class="language-mermaid">…</code></pre>. Transform swaps every
// such block for a placeholder container with a unique id and returns at
// once; the actual rendering runs later on a Scheduler and fills the
// container in the live document. A container that has disappeared by the
// time its task runs is left alone.
package diagram

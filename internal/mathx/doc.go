// Package mathx renders TeX math embedded in message HTML.
//
// A Transformer scans for four delimiter forms and hands each span to an
// Engine, applying the passes in this order:
//
//  1. $$...$$, display, may span lines
//  2. \[...\], display, may span lines
//  3. $...$, inline, single line, not adjacent to another $
//  4. \(...\), inline, may span lines
//
// Spans rendered by one pass are hidden from the passes after it. Inline $
// spans that are purely numeric ($100, $50.00) are left alone, as are spans
// whose content starts or ends with whitespace ("$5 and $"). Content of
// <pre> and <code> elements is never scanned.
//
// Two engines are provided: KatexEngine runs katex.min.js in an embedded
// JavaScript runtime, and MathMLEngine converts TeX to MathML in pure Go.
package mathx

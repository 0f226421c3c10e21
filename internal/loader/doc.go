// Package loader fetches and activates external stylesheets and scripts
// exactly once per URL.
//
// A stylesheet is active once it has been fetched and linked from the
// document head. A script is active once it has been fetched, evaluated in a
// ScriptHost, and referenced from the document head. The head itself is the
// de-duplication record: a URL already present is never fetched again.
// Concurrent first requests for the same URL share a single fetch.
//
// Failures are not cached. A later call for a URL that failed tries again.
package loader

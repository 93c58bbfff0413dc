// Package fileinsights runs the scan and store flows end to end.
//
// Run walks a directory tree, extracts attributes of every file (optionally
// probing videos), aggregates them in a single pass and optionally mirrors
// the records into a store. RunFromStore aggregates a filtered query over
// previously stored records instead. Both return a Result carrying the
// emit.Document to render.
//
// A Result is returned whenever there is something to report. The error
// returned alongside it is then either a *store.PersistenceError (the
// records could not be mirrored) or ErrNoMatches (nothing matched the
// filters); callers are expected to render the Result in both cases.
package fileinsights

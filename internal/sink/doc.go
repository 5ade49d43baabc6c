// Package sink writes flattened rows to files and streams.
//
// Every sink implements engine.RowSink. Writers are buffered; call Flush
// (or Close for the relational sink in package store) when the run ends.
package sink

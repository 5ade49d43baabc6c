// Package engine flattens documents into rows according to a compiled view.
//
// Extraction is structural recursion over the compiled tree:
//
//   - A leaf evaluates its selector and contributes one partial row holding
//     one column. It never multiplies rows.
//   - A composite binds its vars, evaluates its relationship (from, forEach,
//     forEachOrNull or none), filters the candidates with its where
//     predicates, and for every candidate combines its children's
//     contributions by ordered cartesian product, earliest child varying
//     slowest.
//
// Variables live in a parent-linked Scope chain. Each branch extends the
// scope it was given and never modifies it, so siblings cannot observe each
// other's bindings.
//
// ProcessResources drives extraction over a document stream. It is a lazy
// pull pipeline built on iter.Seq2: the next document is read only after the
// rows of the current one have been consumed, and a consumer that stops
// iterating stops the source.
package engine

// Package harness runs conformance suites against the extraction engine.
//
// # Suite Format
//
// Suites are JSON or YAML files with the following structure:
//
//	title: foreach
//	description: "forEach joins"
//	resources:
//	  - resourceType: Patient
//	    id: pt1
//	    name: [{family: Smith}, {family: Lee}]
//	tests:
//	  - title: one row per name
//	    view:
//	      resource: Patient
//	      select:
//	        - forEach: name
//	          select: [{path: family}]
//	    expect:
//	      - {family: Smith}
//	      - {family: Lee}
//
// `documents` is accepted in place of `resources`.
//
// # Expectations
//
// Each test states at least one of:
//
//   - expect: the rows, compared without regard to order
//   - expectColumns: the column names, in order
//   - expectError: true when compiling or running the view must fail
//
// A test with skip set is reported as skipped and not run.
//
// # Comparison
//
// Rows are compared as canonical JSON (ir.MarshalCanonical), so 1 and 1.0
// are equal. An expected row may omit a column the view declares, meaning
// null; any other missing or extra field is a mismatch. Both sides are
// sorted before comparison; permuting either never changes the
// verdict. A failing test carries a diagnostic with a go-spew dump of the
// rows produced.
//
// # Usage
//
//	suites, err := harness.LoadSuites("testdata/suites", "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range suites {
//	    result := harness.Run(ctx, s)
//	    fmt.Println(result.Title, result.Passed, result.Failed)
//	}
package harness

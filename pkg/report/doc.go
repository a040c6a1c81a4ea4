// Package report writes the outcome of a repair run as JSON, for CI jobs
// and scripts that post-process depfix results.
//
// # JSON Format
//
//	{
//	  "run_id": "4f9c0d2e-...",
//	  "mode": "fix",
//	  "rounds": 1,
//	  "inspected": 12,
//	  "clean": false,
//	  "duration_ms": 81234,
//	  "fixes": [
//	    {
//	      "round": 1,
//	      "target": "//app:app_lib",
//	      "kind": "strict_deps",
//	      "build_file": "app/BUILD.bazel",
//	      "added": ["//third_party:androidx_core_core"],
//	      "applied": true
//	    }
//	  ]
//	}
//
// Identifiers that could not be mapped to a first-party label are listed
// under "unresolved" with their raw text; "imports" holds the names of
// unresolved Kotlin references.
package report

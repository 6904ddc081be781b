// Package pkg provides the core libraries of the satie layout engine.
//
// # Overview
//
// Satie turns a score (parts, staves and voices of rhythmic elements) into
// horizontal geometry: every element of every measure gets an x position
// such that simultaneous events line up across staves. The pkg directory is
// organized into these areas:
//
//  1. [core] - Domain logic (score model, division arithmetic, layout engine)
//  2. [pipeline] - Orchestration (validate → layout, with caching)
//  3. [cache] and [store] - Persistence of layouts and score documents
//  4. [dag] and [render/nodelink] - Merge graphs and their diagrams
//  5. [config], [errors], [observability], [buildinfo] - Shared infrastructure
//
// # Architecture
//
// The typical data flow through satie:
//
//	Score file (JSON or YAML)
//	         ↓
//	    [core/document] package (decode into the model union)
//	         ↓
//	    [core/engine] Validate (normalize divisions, fix up, split overflows)
//	         ↓
//	    [core/engine] layout (reduce each measure, merge segment layouts)
//	         ↓
//	    Positioned measures (JSON, terminal table, DOT/SVG merge graph)
//
// # Quick Start
//
// Validate and lay out a score:
//
//	import (
//	    "context"
//	    "github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
//	    "github.com/jocelyn-stericker/satie-sub004/pkg/pipeline"
//	)
//
//	doc, _ := document.ReadFile("score.json")
//	runner := pipeline.NewRunner(nil, nil, nil)
//	result, _ := runner.Execute(context.Background(), doc, pipeline.Options{})
//	for _, m := range result.Layouts {
//	    fmt.Println(m.Number, m.X, m.Width)
//	}
//
// # Main Packages
//
// [core/divisions] - Rescales segments onto a shared rhythmic unit (the LCM
// of their divisions) and converts division counts to quarter notes.
//
// [core/document] - The score model. Elements are a tagged union built by a
// factory keyed on element kind.
//
// [core/engine] - The measure reducer, DivisionOverflow and its Resolve
// split, the validator fixup loop, and the layout merge in its two-pass and
// longest-path forms.
//
// [pipeline] - Validate and layout used by the CLI and the HTTP server, with
// per-measure cache keys built from context fingerprints.
//
// [cache] - File, Redis and null caches behind one interface.
//
// [store] - Memory, file and MongoDB stores for validated documents.
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/core/engine/...        # Specific package
//	go test -run Example                 # Examples only
//
// [core]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/core
// [core/divisions]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/core/divisions
// [core/document]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/core/document
// [core/engine]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/core/engine
// [pipeline]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/cache
// [store]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/store
// [dag]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/dag
// [render/nodelink]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/render/nodelink
// [config]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/config
// [errors]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/errors
// [observability]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/jocelyn-stericker/satie-sub004/pkg/buildinfo
package pkg

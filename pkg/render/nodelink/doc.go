// Package nodelink renders merge graphs as node-link diagrams.
//
// The longest-path merge builds a layered graph whose nodes are groups of
// layouts sharing (division, render class, occurrence) and whose rows are
// division ranks. Drawing that graph is the quickest way to see why an
// element ended up where it did.
//
// # Usage
//
//	g := engine.BuildMergeDAG(partials)
//	g.LongestPath()
//	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The DOT source can also be saved and processed with external Graphviz
// tools. [RenderSVG] uses [github.com/goccy/go-graphviz], which runs
// Graphviz in-process and needs no system install.
package nodelink

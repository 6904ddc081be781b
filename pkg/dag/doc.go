// Package dag provides a directed acyclic graph organized into rows, used to
// order and position layout groups during measure merging.
//
// # Overview
//
// When several partial layouts of a measure are merged, elements that share a
// rhythmic division are unordered with respect to each other, while an
// element at a later division must never sit left of one at an earlier
// division. That constraint graph is layered: row r holds the groups at the
// r-th distinct division, and every group in row r precedes every group in
// row r+1.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "0/Attributes/0", Row: 0, Weight: 12})
//	g.AddNode(dag.Node{ID: "4/Chord/0", Row: 1, Weight: 10})
//	g.AddEdge(dag.Edge{From: "0/Attributes/0", To: "4/Chord/0"})
//	g.LongestPath()
//
// After [DAG.LongestPath], each node's Value is the largest Weight on any
// path ending at it, which is the position the merge assigns to the group.
//
// Edges may only connect consecutive rows; [DAG.Validate] checks this and
// rejects cycles.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use.
package dag

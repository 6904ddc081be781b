// Package engine reduces measures of a score to horizontal geometry.
//
// # Overview
//
// A measure holds one segment per voice and one per staff. [ReduceMeasure]
// walks each voice in order and, for every model, first catches up the
// staff the model sits on: staff elements (clefs, key and time signatures,
// spacers) whose start division is at or before the voice's division are
// processed before the voice element. The walk produces one partial layout
// per voice and per staff, which are then merged so that elements at the
// same division and render class share an x position.
//
// # Validation
//
// [Validate] prepares a document for layout. It normalizes divisions across
// the whole document, inserts missing print, attributes and barline
// elements, and splits measures whose voices run past the time signature.
// Splitting restarts the pass; a [Memo] lets later runs skip measures that
// have not changed since they last validated.
//
// # Merging
//
// [Merge] folds one partial into a master list. [MergeTwoPass] is the
// production strategy; [MergeLongestPath] computes the same positions from
// the constraint graph built by [BuildMergeDAG], and [MergeReference] is a
// direct quadratic formulation used to check both.
//
// # Lines
//
// [PlanLine] threads attribute and accidental state through a validated
// document. Each measure of the resulting plan can be laid out on its own,
// which lets callers lay out measures concurrently and then [Place] them.
package engine

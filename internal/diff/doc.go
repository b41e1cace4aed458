// Package diff computes line-aware diffs between an "original" text and an "edit" text, and derives the line-level chunks that the merge view aligns.
//
// Representation: A Diff holds both texts and an ordered slice of Operations. Each Operation has an Op:
//   - OpEqual: text present in both sides
//   - OpInsert: text present only in the edit side
//   - OpDelete: text present only in the original side
//
// Invariants (enforced by Cleanup, checked by Compute):
//   - no Operation has empty Text
//   - no two adjacent Operations share an Op
//   - concat(Equal+Delete texts) == OrigText and concat(Equal+Insert texts) == EditText
//
// Ignoring whitespace never changes the operations. Insert and Delete operations of only spaces and tabs (they never contain '\n') are skipped when chunks are
// derived, and spaces and tabs at the edges of a change are not part of its changed span; see Diff.ChangedSpan.
//
// Chunks: ChunksFromOps walks the operations and returns half-open line ranges [EditFrom, EditTo) and [OrigFrom, OrigTo) covering each contiguous changed region.
// A chunk only closes at an Equal operation that spans a clean line boundary on both sides, so a line is never split between a changed and an unchanged region.
//
// Getting a diff:
//
//	d, err := diff.Compute(orig, edit, diff.Options{})
//	for _, c := range d.Chunks() {
//		fmt.Println(c)
//	}
//
// Lines: '\n' is the only line separator. A text's line count is the number of '\n' plus one, so "a\n" has two lines (the second is empty).
package diff

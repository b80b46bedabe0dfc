// Package engine merges concurrent document versions into one canonical
// record per document.
//
// Every DocumentVersion names the versions it supersedes in Links. A
// version is a head while no other version links it. The engine keeps one
// head per document as the canonical record and the remaining concurrent
// heads as its forks.
//
// PER-VERSION STEP:
//
// For version D and current record E (if any), inside the batch's unit of
// work:
//
//  1. Every link of D is marked linked. Links that name one of E's forks
//     remove that fork.
//  2. If D is already linked, only the repaired fork set is written.
//  3. Otherwise: with no E, D is inserted with no forks. If E's version
//     is linked, D replaces E with no forks. Otherwise the Selector picks
//     a winner: if E wins, D joins E's forks; if D wins, D becomes
//     canonical with E's forks plus E.
//
// Re-ingesting the canonical version changes nothing beyond step 1.
//
// ORDER INDEPENDENCE:
//
// For a deterministic, symmetric Selector the final records and backlinks
// depend only on the set of versions ingested, not on order or on how the
// versions are split into batches.
//
// KNOWN LIMITATION:
//
// Fork repair only looks at the current record's forks, and step 3
// replaces a linked E without carrying E's forks over. A fork that was
// linked while it was canonical, then lost its place, can therefore be
// reported or dropped differently than a full graph walk would. Histories
// where every head is eventually linked by a single descendant converge.
//
// Batches are serialized by the engine. Stores serialize writers across
// processes.
package engine

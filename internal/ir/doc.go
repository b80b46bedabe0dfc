// Package ir defines the shared vocabulary of docindex: document versions,
// canonical records, payload values, canonical JSON and the storage adapter
// contract.
//
// All other internal packages import ir; ir imports nothing internal. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types in payloads - use int64 for numbers
//   - Fork sets are always sorted and duplicate-free
//   - All JSON tags use camelCase to match the persisted column names
package ir

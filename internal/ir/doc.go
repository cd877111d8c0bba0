// Package ir provides the data model shared by every mekiku package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the entry model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Timestamps are Unix milliseconds (int64), exactly as the wire carries them
//   - An Entry is never removed once logged; State is the only erasure mechanism
//   - Only State and Lines may change after an Entry has been placed
package ir

// Package core defines the shared language of the docdesk console.
//
// This package contains:
//   - Descriptors (Field, Column) with closed kind enums
//   - The Resource schema that drives list, form and batch views
//   - The form value map (Values) and in-memory file handles
//   - List queries and paginated results
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core

// Package core defines the shared language of the workbench.
//
// This package contains:
//   - Domain entities (Session, ResultSetMeta, ResultRow, OverviewItem)
//   - Collaborator interfaces (ExecutionEngine, MetadataSource, RowSource)
//   - Adapter configuration types
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core

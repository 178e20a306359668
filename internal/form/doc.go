// Package form defines the typed document model shared by the parser, the
// inspection engine, patch application, and the execution planner: schema
// groups and fields, the closed sum of field values, per-field response
// state, free-text notes, and the document aggregate.

package form

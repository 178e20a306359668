// Package parser converts directive-annotated document text into the typed
// form model and back. Parsing is two-pass (structure, then value literals)
// and records the raw source spans that the serializer replays when
// formatting preservation is requested.

package parser

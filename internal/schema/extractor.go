package schema

import "context"

// Extractor produces a Description reflecting the current catalog state of
// a live database. Implementations enumerate tables via catalog metadata
// and must issue no mutating statements.
type Extractor interface {
	Extract(ctx context.Context) (*Description, error)
}

// Package llm turns natural-language questions into SQL using a
// configured language model provider.
package llm

import "context"

// Request carries everything the model needs to produce a statement.
// PriorSQL and PriorError are set on correction attempts so the model
// sees exactly what the database rejected.
type Request struct {
	Question      string
	SchemaContext string
	Hints         []string
	PriorSQL      string
	PriorError    string
}

// Response is a generated SQL statement
type Response struct {
	SQL        string
	Model      string
	TokensUsed int
}

// Generator defines the interface for SQL generation
type Generator interface {
	GenerateSQL(ctx context.Context, req Request) (*Response, error)
}

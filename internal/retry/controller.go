// Package retry drives the generate-execute-correct loop for a single
// question.
package retry

import (
	"context"

	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/sqlexec"
)

// State identifies a step in the correction loop
type State string

// Loop states. A run moves Generating -> Executing and ends in
// Succeeded or Failed; Retrying bridges a failed execution back to
// Generating with the database error in hand.
const (
	StateGenerating State = "generating"
	StateExecuting  State = "executing"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Attempt records one pass through the loop
type Attempt struct {
	Number int
	SQL    string
	Err    error
}

// Outcome is the final result of a run, including every attempt made
type Outcome struct {
	State    State
	SQL      string
	Result   *sqlexec.Result
	Attempts []Attempt
}

// Succeeded reports whether the run produced working SQL
func (o *Outcome) Succeeded() bool {
	return o.State == StateSucceeded
}

// Controller runs the correction loop against a generator and executor
type Controller struct {
	generator   llm.Generator
	executor    sqlexec.Executor
	maxAttempts int
	logger      *logging.Logger
}

// NewController creates a retry controller
func NewController(
	generator llm.Generator,
	executor sqlexec.Executor,
	maxAttempts int,
	logger *logging.Logger,
) *Controller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Controller{
		generator:   generator,
		executor:    executor,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Run generates SQL for the question and executes it, feeding the raw
// database error back to the generator after each failed execution. It
// stops on the first success or after maxAttempts failures. The returned
// Outcome always carries the full attempt history; the error is non-nil
// exactly when the outcome state is Failed.
func (c *Controller) Run(
	ctx context.Context,
	question string,
	schemaContext string,
	hints []string,
) (*Outcome, error) {
	outcome := &Outcome{State: StateGenerating}

	var (
		priorSQL string
		priorErr error
	)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			outcome.State = StateFailed
			return outcome, errors.Wrap(err, errors.ErrTypeExecution, "run canceled")
		}

		outcome.State = StateGenerating
		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"state":   string(outcome.State),
		}).Debug("generating SQL")

		req := llm.Request{
			Question:      question,
			SchemaContext: schemaContext,
			Hints:         hints,
			PriorSQL:      priorSQL,
		}
		if priorErr != nil {
			req.PriorError = priorErr.Error()
		}

		resp, err := c.generator.GenerateSQL(ctx, req)
		if err != nil {
			outcome.Attempts = append(outcome.Attempts, Attempt{Number: attempt, Err: err})

			// With no prior execution error there is nothing new to
			// tell the model; repeating the identical request cannot
			// help.
			if priorErr == nil {
				outcome.State = StateFailed
				return outcome, err
			}

			if attempt == c.maxAttempts {
				outcome.State = StateFailed
				return outcome, errors.Wrapf(err, errors.ErrTypeGeneration,
					"no working SQL after %d attempts", c.maxAttempts)
			}

			outcome.State = StateRetrying

			continue
		}

		outcome.State = StateExecuting
		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"state":   string(outcome.State),
			"sql":     resp.SQL,
		}).Debug("executing SQL")

		result, err := c.executor.Execute(ctx, resp.SQL)
		if err == nil {
			outcome.State = StateSucceeded
			outcome.SQL = resp.SQL
			outcome.Result = result
			outcome.Attempts = append(outcome.Attempts, Attempt{Number: attempt, SQL: resp.SQL})

			return outcome, nil
		}

		outcome.Attempts = append(outcome.Attempts, Attempt{
			Number: attempt,
			SQL:    resp.SQL,
			Err:    err,
		})

		if attempt == c.maxAttempts {
			outcome.State = StateFailed

			return outcome, errors.Wrapf(err, errors.ErrTypeExecution,
				"no working SQL after %d attempts", c.maxAttempts).
				WithSuggestion("Rephrase the question with more specific table or column names").
				WithSuggestion("Add a hint describing the relevant tables")
		}

		outcome.State = StateRetrying
		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		}).Debug("execution failed, retrying with error context")

		priorSQL = resp.SQL

		// The generator gets the raw database message, not our wrapping.
		priorErr = errors.RootCause(err)
	}

	// Unreachable: the loop always returns on the last attempt.
	outcome.State = StateFailed

	return outcome, errors.New(errors.ErrTypeInternal, "retry loop exited without a result")
}

// Package hints manages operator-supplied guidance that is injected
// into every generation prompt.
package hints

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/store"
)

// Default category for hints added without one
const DefaultCategory = "general"

// Manager provides hint CRUD over the repository
type Manager struct {
	repo store.Repository
}

// NewManager creates a hint manager
func NewManager(repo store.Repository) *Manager {
	return &Manager{repo: repo}
}

// Add stores a new enabled hint and returns it
func (m *Manager) Add(ctx context.Context, category, text string) (*store.Hint, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New(errors.ErrTypeValidation, "hint text is empty")
	}

	if category == "" {
		category = DefaultCategory
	}

	hint := store.Hint{
		ID:        uuid.New().String(),
		Category:  category,
		Text:      text,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}

	if err := m.repo.InsertHint(ctx, hint); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to store hint")
	}

	return &hint, nil
}

// List returns hints, optionally filtered by category
func (m *Manager) List(ctx context.Context, category string) ([]store.Hint, error) {
	hints, err := m.repo.ListHints(ctx, category, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to list hints")
	}

	return hints, nil
}

// SetEnabled toggles a hint without removing it
func (m *Manager) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if err := m.repo.SetHintEnabled(ctx, id, enabled); err != nil {
		return errors.Wrap(err, errors.ErrTypeInternal, "failed to update hint")
	}

	return nil
}

// Remove deletes a hint
func (m *Manager) Remove(ctx context.Context, id string) error {
	if err := m.repo.DeleteHint(ctx, id); err != nil {
		return errors.Wrap(err, errors.ErrTypeInternal, "failed to delete hint")
	}

	return nil
}

// EnabledTexts returns the text of every enabled hint, in insertion
// order, ready to drop into a prompt
func (m *Manager) EnabledTexts(ctx context.Context) ([]string, error) {
	hints, err := m.repo.ListHints(ctx, "", true)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to list hints")
	}

	texts := make([]string, 0, len(hints))
	for _, h := range hints {
		texts = append(texts, h.Text)
	}

	return texts, nil
}

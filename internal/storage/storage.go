// Package storage persists conversation history.
package storage

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// ConversationStore is an append-only log of conversation turns partitioned by namespace.
// Turns are never updated or deleted.
type ConversationStore interface {
	// Append records turn. A missing ID or Timestamp is filled in.
	Append(ctx context.Context, turn *models.ConversationTurn) error
	// ReadAll returns every turn of namespace in the order they were appended.
	ReadAll(ctx context.Context, namespace string) ([]models.ConversationTurn, error)
	CountTurns(ctx context.Context) (int64, error)
	Close() error
}

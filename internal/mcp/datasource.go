package mcp

import (
	"context"

	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the snapshot store for MCP tools. Both *storage.DB
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListSnapshots(ctx context.Context, userID, limit int) ([]models.SnapshotRow, error)
	GetSnapshot(ctx context.Context, id uuid.UUID, userID int) (*models.SnapshotRow, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)

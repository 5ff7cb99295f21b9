package repository

import (
	"context"

	"github.com/google/uuid"
)

// CleanupReason explains why an object was scheduled for removal.
type CleanupReason string

const (
	// CleanupCompensation marks a file staged by a failed create or update.
	CleanupCompensation CleanupReason = "compensation"
	// CleanupReplaced marks a file superseded by a committed update.
	CleanupReplaced CleanupReason = "replaced"
)

// CleanupTask asks the worker to remove an object that the API could not delete.
type CleanupTask struct {
	VideoID    uuid.UUID     `json:"video_id"`
	Key        string        `json:"key"`
	Reason     CleanupReason `json:"reason"`
	RetryCount int           `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishCleanupTask schedules an orphaned object for deletion.
	// Used by the API server when a best-effort delete fails.
	PublishCleanupTask(ctx context.Context, task CleanupTask) error

	// ConsumeCleanupTasks starts consuming cleanup tasks from the queue.
	// The handler function is called for each received task.
	// Used by the worker service.
	ConsumeCleanupTasks(ctx context.Context, handler func(task CleanupTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}

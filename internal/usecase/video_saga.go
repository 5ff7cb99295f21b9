package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/domain/repository"
	"github.com/hszk-dev/mediacatalog/internal/infrastructure/metrics"
)

const (
	opCreate = "create"
	opUpdate = "update"
)

// SagaConfig holds configuration for VideoSaga.
type SagaConfig struct {
	// UploadConcurrency bounds parallel uploads within one call. 1 uploads sequentially.
	UploadConcurrency int
	// CompensationTimeout bounds file compensation and rollback after a failure,
	// including failures caused by a cancelled context.
	CompensationTimeout time.Duration
}

// DefaultSagaConfig returns the default configuration.
func DefaultSagaConfig() SagaConfig {
	return SagaConfig{
		UploadConcurrency:   1,
		CompensationTimeout: 30 * time.Second,
	}
}

// VideoSaga persists a video across the relational store and object storage.
//
// Relational writes run in one transaction. Files are uploaded before the
// commit; if anything fails the uploaded files are deleted and the
// transaction is rolled back. Files replaced by an update are deleted only
// after the commit succeeded. Deletes that fail are logged and handed to the
// cleanup queue, never retried inline.
//
// Concurrent updates of the same video are not coordinated; the last commit wins.
type VideoSaga struct {
	tx        repository.TxBeginner
	storage   repository.ObjectStorage
	queue     repository.MessageQueue
	extractor *FileExtractor

	uploadConcurrency   int
	compensationTimeout time.Duration
}

// NewVideoSaga creates a new VideoSaga. queue may be nil, in which case
// failed deletes are only logged.
func NewVideoSaga(
	tx repository.TxBeginner,
	storage repository.ObjectStorage,
	queue repository.MessageQueue,
	extractor *FileExtractor,
	cfg SagaConfig,
) *VideoSaga {
	if extractor == nil {
		extractor = NewFileExtractor(nil)
	}
	if cfg.UploadConcurrency < 1 {
		cfg.UploadConcurrency = 1
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = DefaultSagaConfig().CompensationTimeout
	}
	return &VideoSaga{
		tx:                  tx,
		storage:             storage,
		queue:               queue,
		extractor:           extractor,
		uploadConcurrency:   cfg.UploadConcurrency,
		compensationTimeout: cfg.CompensationTimeout,
	}
}

// sagaRun tracks one execution.
type sagaRun struct {
	op      string
	videoID uuid.UUID
	state   SagaState
	started time.Time

	mu     sync.Mutex
	staged []string
}

func newSagaRun(op string, videoID uuid.UUID) *sagaRun {
	return &sagaRun{op: op, videoID: videoID, state: StateStarted, started: time.Now()}
}

func (r *sagaRun) stage(key string) {
	r.mu.Lock()
	r.staged = append(r.staged, key)
	r.mu.Unlock()
}

func (r *sagaRun) stagedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.staged...)
}

// Create inserts a new video with its relations and uploads its files.
func (s *VideoSaga) Create(ctx context.Context, attrs model.VideoAttributes) (*model.Video, error) {
	if err := attrs.ValidateForCreate(); err != nil {
		return nil, asValidationError(err)
	}
	if err := attrs.CheckStoredNames(nil); err != nil {
		return nil, asValidationError(err)
	}

	attrs, files := s.extractor.Extract(attrs, model.FileFields)

	video, err := model.NewVideo(attrs)
	if err != nil {
		return nil, asValidationError(err)
	}
	for _, rel := range model.Relations {
		video.SetRelation(rel, nil)
	}

	run := newSagaRun(opCreate, video.ID)

	uow, err := s.tx.Begin(ctx)
	if err != nil {
		return nil, s.fail(ctx, run, nil, ErrRelational, err)
	}

	if err := uow.Videos().Create(ctx, video); err != nil {
		return nil, s.fail(ctx, run, uow, ErrRelational, fmt.Errorf("insert video: %w", err))
	}
	run.state = StateScalarWritten

	if err := syncRelations(ctx, uow.Videos(), video, attrs); err != nil {
		return nil, s.fail(ctx, run, uow, ErrRelational, err)
	}
	run.state = StateRelationsSynced

	if err := s.uploadFiles(ctx, run, files); err != nil {
		return nil, s.fail(ctx, run, uow, ErrStorageWrite, err)
	}
	run.state = StateFilesUploaded

	if err := s.commit(ctx, uow); err != nil {
		return nil, s.fail(ctx, run, uow, ErrRelational, err)
	}
	run.state = StateCommitted

	s.succeed(run)
	return video, nil
}

// Update applies the supplied attributes to a live video. Only relations
// present in attrs are synchronized. Files replaced or removed by the update
// are deleted after the commit.
func (s *VideoSaga) Update(ctx context.Context, videoID uuid.UUID, attrs model.VideoAttributes) (*model.Video, error) {
	if err := attrs.ValidateForUpdate(); err != nil {
		return nil, asValidationError(err)
	}

	input := attrs
	attrs, files := s.extractor.Extract(attrs, model.FileFields)

	run := newSagaRun(opUpdate, videoID)

	uow, err := s.tx.Begin(ctx)
	if err != nil {
		return nil, s.fail(ctx, run, nil, ErrRelational, err)
	}

	video, err := uow.Videos().GetByID(ctx, videoID)
	if err != nil {
		return nil, s.fail(ctx, run, uow, ErrRelational, fmt.Errorf("load video: %w", err))
	}
	if video.IsDeleted() {
		return nil, s.fail(ctx, run, uow, ErrRelational, fmt.Errorf("load video: %w", repository.ErrVideoNotFound))
	}
	// Stored names are only meaningful against the loaded row.
	if err := input.CheckStoredNames(video); err != nil {
		s.rollback(ctx, run, uow)
		return nil, asValidationError(err)
	}

	replaced := replacedFiles(video, attrs)
	video.Apply(attrs)

	if err := uow.Videos().Update(ctx, video); err != nil {
		return nil, s.fail(ctx, run, uow, ErrRelational, fmt.Errorf("update video: %w", err))
	}
	run.state = StateScalarWritten

	if err := syncRelations(ctx, uow.Videos(), video, attrs); err != nil {
		return nil, s.fail(ctx, run, uow, ErrRelational, err)
	}
	run.state = StateRelationsSynced

	if err := s.uploadFiles(ctx, run, files); err != nil {
		return nil, s.fail(ctx, run, uow, ErrStorageWrite, err)
	}
	run.state = StateFilesUploaded

	if err := s.commit(ctx, uow); err != nil {
		return nil, s.fail(ctx, run, uow, ErrRelational, err)
	}
	run.state = StateCommitted

	s.deleteReplaced(ctx, videoID, replaced)
	s.succeed(run)
	return video, nil
}

// replacedFiles returns the keys of the stored files that attrs replaces or removes.
func replacedFiles(video *model.Video, attrs model.VideoAttributes) []string {
	var keys []string
	for _, field := range model.FileFields {
		value, ok := attrs.Files[field]
		if !ok {
			continue
		}
		old := video.File(field)
		if old == "" || old == value.Name {
			continue
		}
		keys = append(keys, video.FileKey(old))
	}
	return keys
}

// syncRelations replaces every relation whose key is present in attrs.
// A present empty list clears the relation.
func syncRelations(ctx context.Context, videos repository.VideoRepository, video *model.Video, attrs model.VideoAttributes) error {
	for _, rel := range model.Relations {
		ids, ok := attrs.RelationIDs(rel)
		if !ok {
			continue
		}
		ids = model.UniqueIDs(ids)
		if err := videos.SyncRelation(ctx, video.ID, rel, ids); err != nil {
			return fmt.Errorf("sync %s: %w", rel, err)
		}
		video.SetRelation(rel, ids)
	}
	return nil
}

func (s *VideoSaga) uploadFiles(ctx context.Context, run *sagaRun, files []ExtractedFile) error {
	if s.uploadConcurrency == 1 || len(files) < 2 {
		for _, f := range files {
			if err := s.upload(ctx, run, f); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadConcurrency)
	for _, f := range files {
		g.Go(func() error {
			return s.upload(gctx, run, f)
		})
	}
	return g.Wait()
}

func (s *VideoSaga) upload(ctx context.Context, run *sagaRun, f ExtractedFile) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("upload %s: %w", f.Field, err)
	}

	key := model.FileKey(run.videoID, f.Name)
	if err := s.storage.Put(ctx, key, f.Upload.Content, f.Upload.Size, f.Upload.ContentType); err != nil {
		return fmt.Errorf("upload %s: %w", f.Field, err)
	}

	run.stage(key)
	return nil
}

// commit refuses to commit once ctx is done so a cancelled saga always rolls back.
func (s *VideoSaga) commit(ctx context.Context, uow repository.UnitOfWork) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// fail deletes the files staged so far, rolls back uow and returns the
// original failure. Both steps run detached from ctx so that cancellation
// does not skip them.
func (s *VideoSaga) fail(ctx context.Context, run *sagaRun, uow repository.UnitOfWork, kind, cause error) error {
	failedAt := run.state
	run.state = StateFailed

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	for _, key := range run.stagedKeys() {
		s.deleteFile(cctx, run.videoID, key, repository.CleanupCompensation)
	}
	run.state = StateCompensatingFilesDeleted

	if uow != nil {
		s.rollbackTx(cctx, run, uow)
	}
	run.state = StateRolledBack

	sagaErr := &SagaError{Op: run.op, State: failedAt, Kind: kind, Err: cause}

	level := slog.LevelError
	if errors.Is(cause, repository.ErrVideoNotFound) || errors.Is(cause, context.Canceled) {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "video saga rolled back",
		"operation", run.op,
		"video_id", run.videoID,
		"failed_after", failedAt,
		"staged_files", len(run.stagedKeys()),
		"error", cause,
	)

	metrics.SagaExecutionsTotal.WithLabelValues(run.op, metrics.SagaOutcomeRolled).Inc()
	metrics.SagaDuration.WithLabelValues(run.op).Observe(time.Since(run.started).Seconds())

	return sagaErr
}

// rollback abandons a run that failed validation before anything was written.
func (s *VideoSaga) rollback(ctx context.Context, run *sagaRun, uow repository.UnitOfWork) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	s.rollbackTx(cctx, run, uow)
	run.state = StateRolledBack
}

func (s *VideoSaga) rollbackTx(ctx context.Context, run *sagaRun, uow repository.UnitOfWork) {
	if err := uow.Rollback(ctx); err != nil {
		slog.Error("failed to roll back video saga",
			"operation", run.op,
			"video_id", run.videoID,
			"error", err,
		)
	}
}

func (s *VideoSaga) succeed(run *sagaRun) {
	metrics.SagaExecutionsTotal.WithLabelValues(run.op, metrics.SagaOutcomeCommitted).Inc()
	metrics.SagaDuration.WithLabelValues(run.op).Observe(time.Since(run.started).Seconds())
}

// deleteReplaced removes superseded files after a successful commit.
func (s *VideoSaga) deleteReplaced(ctx context.Context, videoID uuid.UUID, keys []string) {
	if len(keys) == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
	defer cancel()

	for _, key := range keys {
		s.deleteFile(cctx, videoID, key, repository.CleanupReplaced)
	}
}

// deleteFile is best effort: a failure is logged and scheduled for the
// cleanup worker.
func (s *VideoSaga) deleteFile(ctx context.Context, videoID uuid.UUID, key string, reason repository.CleanupReason) {
	err := s.storage.Delete(ctx, key)
	if err == nil {
		metrics.FileDeletesTotal.WithLabelValues(string(reason), metrics.StatusSuccess).Inc()
		return
	}

	metrics.FileDeletesTotal.WithLabelValues(string(reason), metrics.StatusError).Inc()
	slog.Error("failed to delete file",
		"video_id", videoID,
		"key", key,
		"reason", reason,
		"error", err,
	)

	if s.queue == nil {
		return
	}

	task := repository.CleanupTask{VideoID: videoID, Key: key, Reason: reason}
	if err := s.queue.PublishCleanupTask(ctx, task); err != nil {
		metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupPublishError).Inc()
		slog.Error("failed to schedule file cleanup",
			"video_id", videoID,
			"key", key,
			"error", err,
		)
		return
	}
	metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupPublished).Inc()
}

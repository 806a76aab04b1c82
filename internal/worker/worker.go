// Package worker contains methods for worker to init at start, and to process resize jobs
package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/UnendingLoop/PhotoResizer/internal/imageproc"
	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/UnendingLoop/PhotoResizer/internal/mwlogger"
	"github.com/UnendingLoop/PhotoResizer/internal/service"
	"github.com/disintegration/imaging"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
)

// staleAfter - после этого времени задача в in_progress считается брошенной и берется заново
const staleAfter = 10 * time.Minute

var errAlreadyInProgress = errors.New("job is already in progress")

// errInfrastructure marks failures of the result store or the DB; the job is left for redelivery
var errInfrastructure = errors.New("infrastructure failure")

type JobWorkerService interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	SaveResult(ctx context.Context, job *model.Job) error
	MarkFailed(ctx context.Context, job *model.Job, reason error) error
}

// MessageCommitter - подтверждение обработки сообщения в очереди
type MessageCommitter interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	storage      service.ObjectStorage
	service      JobWorkerService
	queue        <-chan kafkago.Message
	consumer     MessageCommitter
	resultPrefix string
}

func NewWorkerInstance(strg service.ObjectStorage, svc JobWorkerService, q <-chan kafkago.Message, cons MessageCommitter, resPr string) *Worker {
	return &Worker{storage: strg, service: svc, queue: q, consumer: cons, resultPrefix: resPr}
}

// StartWorker handles one job at a time until ctx is canceled or the queue is closed
func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg kafkago.Message) {
	id := string(msg.Key)
	logger := zlog.Logger.With().Str("job_id", id).Logger()
	jobCtx := mwlogger.WithLogger(ctx, logger)

	err := w.initProcessor(jobCtx, id)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrJobNotFound), errors.Is(err, model.ErrIncorrectID):
		logger.Warn().Err(err).Msg("Dropping message for unknown job")
	case errors.Is(err, errAlreadyInProgress):
		logger.Info().Msg("Duplicate message for a running job")
	default:
		// без коммита: задачу вернет recovery loop
		logger.Error().Err(err).Msg("Task failed")
		return
	}

	if err := w.consumer.Commit(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("Failed to commit queue-message")
	}
}

func (w *Worker) initProcessor(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	// считать из базы задачу
	task, err := w.service.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("worker failed to fetch job %q from DB: %w", id, err)
	}
	// проверить статус
	switch task.Status {
	case model.StatusDone, model.StatusFailed:
		return nil
	case model.StatusInProgress:
		if task.UpdatedAt != nil && time.Since(*task.UpdatedAt) < staleAfter {
			return errAlreadyInProgress
		}
	}

	// на всякий случай проверить поле с результатом
	if w.resultPrefix != "" && strings.HasPrefix(task.ResultKey, w.resultPrefix) {
		if err := w.service.UpdateStatus(ctx, id, model.StatusDone); err != nil {
			return fmt.Errorf("failed to update status of already-done job in DB: %w", err)
		}
		return nil
	}

	// обновить статус
	if err := w.service.UpdateStatus(ctx, id, model.StatusInProgress); err != nil {
		return fmt.Errorf("failed to update status of job %q to `in_progress` in DB: %w", id, err)
	}

	// выполняем саму операцию; ошибка файла не блокирует остальной батч
	if pErr := w.processTask(ctx, task); pErr != nil {
		if errors.Is(pErr, errInfrastructure) {
			return fmt.Errorf("job %q interrupted: %w", id, pErr)
		}
		logger.Warn().Err(pErr).Str("file", task.FileName).Msg("Job failed")
		if uErr := w.service.MarkFailed(ctx, task, pErr); uErr != nil {
			return fmt.Errorf("failed to mark job %q as failed in DB: %w \nAFTER\n error while processing job: %w", id, uErr, pErr)
		}
		return nil
	}

	logger.Info().Str("file", task.FileName).Str("result", task.ResultKey).Msg("Job done")
	return nil
}

func (w *Worker) processTask(ctx context.Context, task *model.Job) error {
	// достать из storage исходник
	src, err := w.fetchImage(ctx, task.SourceKey)
	if err != nil {
		return fmt.Errorf("source image: %w", err)
	}

	// логотип нужен только для logo-ватермарка
	var logo image.Image
	if task.Settings.Watermark.Kind == model.WatermarkLogo && task.LogoKey != "" {
		if logo, err = w.fetchImage(ctx, task.LogoKey); err != nil {
			return fmt.Errorf("logo image: %w", err)
		}
	}

	renderer, err := imageproc.NewRenderer(task.Settings, logo)
	if err != nil {
		return err
	}
	out, err := renderer.Render(src)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	result, size, err := imageproc.EncodeBuffer(out, imaging.JPEG)
	if err != nil {
		return err
	}

	// положить результат в сторедж
	resKey := w.resultPrefix + task.UID.String() + ".jpg"
	if err := w.storage.Put(ctx, resKey, size, model.JPEG, result); err != nil {
		return fmt.Errorf("%w: worker failed to put result image to storage: %w", errInfrastructure, err)
	}

	task.ResultKey = resKey

	// обновить запись в БД
	if err := w.service.SaveResult(ctx, task); err != nil {
		return fmt.Errorf("%w: worker failed to save result to DB: %w", errInfrastructure, err)
	}
	return nil
}

func (w *Worker) fetchImage(ctx context.Context, key string) (image.Image, error) {
	r, _, err := w.storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFileAccess, err)
	}
	defer closeFileFlow(r)

	return imageproc.Decode(r)
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Worker failed to close fileflow")
	}
}

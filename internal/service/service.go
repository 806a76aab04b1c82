// Package service provides business-logic for the app
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/UnendingLoop/PhotoResizer/internal/imageproc"
	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/UnendingLoop/PhotoResizer/internal/mwlogger"
	"github.com/UnendingLoop/PhotoResizer/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/retry"
)

const (
	defaultSourcePrefix = "sources/"
	defaultLogoPrefix   = "logos/"
	defaultResultPrefix = "results/"
)

type JobService struct {
	repo         repository.JobRepo
	publisher    TaskPublisher
	storage      ObjectStorage
	cache        PreviewCache
	sourcePrefix string
	logoPrefix   string
	resultPrefix string
}

// NewJobService - pub, strg and cache may be nil for processes that don't need them (the worker has no publisher and no cache)
func NewJobService(cfg *config.Config, repo repository.JobRepo, pub TaskPublisher, strg ObjectStorage, cache PreviewCache) *JobService {
	svc := &JobService{
		repo:         repo,
		publisher:    pub,
		storage:      strg,
		cache:        cache,
		sourcePrefix: defaultSourcePrefix,
		logoPrefix:   defaultLogoPrefix,
		resultPrefix: defaultResultPrefix,
	}
	if cfg != nil {
		if p := cfg.GetString("RESULT_PREFIX"); p != "" {
			svc.resultPrefix = p
		}
	}
	return svc
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ObjectStorage - контракт для работы с хранилищем
type ObjectStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// PreviewCache - контракт для кэша превью
type PreviewCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

func (c JobService) ResultPrefix() string {
	return c.resultPrefix
}

// CreateBatch stores every image and the optional logo, creates one job per image and queues them
func (c JobService) CreateBatch(ctx context.Context, data *model.BatchCreateData) ([]model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// Валидируем вход
	srcTypes, logoType, err := validateBatch(data)
	if err != nil {
		return nil, err
	}

	batchID := uuid.New()
	now := time.Now().UTC()

	// все, что уже легло в хранилище, удаляем если батч не создался
	var stored []string

	// кладем в хранилище логотип - один на весь батч
	logoKey := ""
	if data.Settings.Watermark.Kind == model.WatermarkLogo {
		logoKey = c.logoPrefix + batchID.String() + model.GetImageFileExt[logoType]
		if err := c.storage.Put(ctx, logoKey, data.Logo.Size, logoType, data.Logo.File); err != nil {
			logger.Error().Err(err).Msg("Failed to save logo in Storage")
			return nil, model.ErrCommon500
		}
		stored = append(stored, logoKey)
	}

	jobs := make([]model.Job, 0, len(data.Images))
	for i, img := range data.Images {
		uid := uuid.New()
		srcKey := c.sourcePrefix + uid.String() + model.GetImageFileExt[srcTypes[i]]

		// кладем в хранилище сорсник
		if err := c.storage.Put(ctx, srcKey, img.Size, srcTypes[i], img.File); err != nil {
			logger.Error().Err(err).Str("file", img.Name).Msg("Failed to save src-image in Storage")
			c.dropObjects(ctx, stored)
			return nil, model.ErrCommon500
		}
		stored = append(stored, srcKey)

		jobLog := make(model.StringSlice, 0, len(data.Warnings)+1)
		jobLog = append(jobLog, data.Warnings...)

		jobs = append(jobs, model.Job{
			UID:       uid,
			BatchID:   batchID,
			FileName:  img.Name,
			SourceKey: srcKey,
			LogoKey:   logoKey,
			Settings:  data.Settings,
			Status:    model.StatusCreated,
			Log:       jobLog,
			CreatedAt: &now,
			UpdatedAt: &now,
		})
	}

	// шлем в базу
	if err := c.repo.CreateBatch(ctx, jobs); err != nil {
		logger.Error().Err(err).Msg("Failed to create jobs in DB")
		c.dropObjects(ctx, stored)
		return nil, model.ErrCommon500
	}

	// кладем в очередь задач(в кафку); неотправленные подберет recovery loop
	for _, j := range jobs {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(j.UID.String()), nil); err != nil {
			logger.Error().Err(err).Str("job_id", j.UID.String()).Msg("Failed to publish job to task-queue, left for recovery")
		}
	}

	logger.Info().Str("batch_id", batchID.String()).Int("jobs", len(jobs)).Msg("Batch created")
	return jobs, nil
}

// dropObjects removes uploads of a batch that was not created; the request may already be canceled
func (c JobService) dropObjects(ctx context.Context, keys []string) {
	logger := mwlogger.LoggerFromContext(ctx)
	cleanupCtx := context.WithoutCancel(ctx)

	for _, key := range keys {
		if err := c.storage.Delete(cleanupCtx, key); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to remove upload of a failed batch")
		}
	}
}

func (c JobService) GetBatch(ctx context.Context, id string) (*model.BatchReport, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	batchID, err := uuid.Parse(id)
	if err != nil {
		return nil, model.ErrIncorrectID
	}

	jobs, err := c.repo.ListBatch(ctx, batchID.String())
	if err != nil {
		if errors.Is(err, model.ErrBatchNotFound) {
			return nil, model.ErrBatchNotFound
		}
		logger.Error().Err(err).Str("batch_id", id).Msg("Failed to fetch batch from DB")
		return nil, model.ErrCommon500
	}

	return model.NewBatchReport(batchID, jobs), nil
}

func (c JobService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	res, err := c.repo.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch jobs list from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return nil, model.ErrJobNotFound
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch job %q from DB", id))
		return nil, model.ErrCommon500
	}

	return res, nil
}

// LoadResult returns the rendered JPEG with its content type and download name
func (c JobService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.Get(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	if res.Status != model.StatusDone {
		return nil, "", "", model.ErrResultNotReady
	}

	// достаем из хранилища
	data, cType, err := c.storage.Get(ctx, res.ResultKey)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result-image %q from Storage", id))
		return nil, "", "", model.ErrCommon500
	}
	if cType == "" {
		cType = model.JPEG
	}
	return data, cType, model.ResultName(res.FileName), nil
}

func (c JobService) Delete(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	// читаем из базы
	res, err := c.Get(ctx, id)
	if err != nil {
		return err
	}

	// удаляем из базы
	if err := c.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return model.ErrJobNotFound
		}
		logger.Error().Err(err).Msg("Failed to delete job from DB")
		return model.ErrCommon500
	}

	// удаляем из хранилища сорсник и результат(если он есть)
	if err := c.storage.Delete(ctx, res.SourceKey); err != nil {
		logger.Error().Err(err).Msg("Failed to delete src-image from Storage")
		return model.ErrCommon500
	}
	if res.ResultKey != "" {
		if err := c.storage.Delete(ctx, res.ResultKey); err != nil {
			logger.Error().Err(err).Msg("Failed to delete result-image from Storage")
			return model.ErrCommon500
		}
	}

	// логотип общий для батча - удаляем вместе с последней задачей
	if res.LogoKey != "" {
		if _, err := c.repo.ListBatch(ctx, res.BatchID.String()); errors.Is(err, model.ErrBatchNotFound) {
			if err := c.storage.Delete(ctx, res.LogoKey); err != nil {
				logger.Error().Err(err).Msg("Failed to delete logo from Storage")
				return model.ErrCommon500
			}
		}
	}

	return nil
}

func (c JobService) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}
	if !model.StatusMap[newStat] {
		return model.ErrInvalidArgument
	}

	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.UpdateStatus(ctx, id, newStat); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to update job status in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

// SaveResult marks job done and logs the saved file name
func (c JobService) SaveResult(ctx context.Context, job *model.Job) error {
	logger := mwlogger.LoggerFromContext(ctx)
	t := time.Now().UTC()
	job.UpdatedAt = &t
	job.Status = model.StatusDone

	line := "saved " + model.ResultName(job.FileName)
	if err := c.repo.SaveResult(ctx, job, line); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to save result in DB")
			return model.ErrCommon500 // 500
		}
	}
	job.Log = append(job.Log, line)

	return nil
}

// MarkFailed sets status failed and appends "{file}: {reason}" to the job log
func (c JobService) MarkFailed(ctx context.Context, job *model.Job, reason error) error {
	logger := mwlogger.LoggerFromContext(ctx)

	line := fmt.Sprintf("%s: failed: %v", job.FileName, reason)
	if err := c.repo.MarkFailed(ctx, job.UID.String(), line); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound
		default:
			logger.Error().Err(err).Msg("Failed to mark job as failed in DB")
			return model.ErrCommon500
		}
	}
	job.Status = model.StatusFailed
	job.Log = append(job.Log, line)

	return nil
}

func (c JobService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.repo.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	for _, v := range orphans {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(v), nil); err != nil {
			logger.Error().Err(err).Str("job_id", v).Msg("Failed to publish orphan to queue")
		}
	}
	if len(orphans) > 0 {
		logger.Info().Int("count", len(orphans)).Msg("Orphan jobs republished")
	}
}

// Preview renders one image synchronously; identical requests are served from the cache
func (c JobService) Preview(ctx context.Context, data *model.PreviewData) ([]byte, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if _, err := validateUpload(&data.Image, model.ErrEmptySource); err != nil {
		return nil, "", err
	}
	if err := data.Settings.Validate(); err != nil {
		return nil, "", err
	}

	format := imageproc.FormatFromName(data.Format)
	cType := model.GetCType[format]

	src, err := io.ReadAll(data.Image.File)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read preview source")
		return nil, "", model.ErrCommon500
	}

	var logoRaw []byte
	if data.Settings.Watermark.Kind == model.WatermarkLogo {
		if data.Logo == nil {
			return nil, "", model.ErrEmptyLogo
		}
		if _, err := validateUpload(data.Logo, model.ErrUnsupportedLogoFormat); err != nil {
			return nil, "", err
		}
		if logoRaw, err = io.ReadAll(data.Logo.File); err != nil {
			logger.Error().Err(err).Msg("Failed to read preview logo")
			return nil, "", model.ErrCommon500
		}
	}

	key, err := previewKey(data.Settings, format, src, logoRaw)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build preview cache key")
		return nil, "", model.ErrCommon500
	}

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			logger.Warn().Err(err).Msg("Preview cache is unavailable")
		}
		if ok {
			return cached, cType, nil
		}
	}

	img, err := imageproc.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", model.ErrUnsupportedFormat
	}

	var logo image.Image
	if logoRaw != nil {
		if logo, err = imageproc.Decode(bytes.NewReader(logoRaw)); err != nil {
			return nil, "", model.ErrUnsupportedLogoFormat
		}
	}

	renderer, err := imageproc.NewRenderer(data.Settings, logo)
	if err != nil {
		return nil, "", err
	}
	out, err := renderer.Render(img)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to render preview")
		return nil, "", model.ErrCommon500
	}

	var buf bytes.Buffer
	if err := imageproc.Encode(&buf, out, format); err != nil {
		logger.Error().Err(err).Msg("Failed to encode preview")
		return nil, "", model.ErrCommon500
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, buf.Bytes()); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache preview")
		}
	}

	return buf.Bytes(), cType, nil
}

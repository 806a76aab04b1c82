// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

type JobHandler struct {
	service JobService
}

type JobService interface {
	CreateBatch(ctx context.Context, data *model.BatchCreateData) ([]model.Job, error)
	GetBatch(ctx context.Context, id string) (*model.BatchReport, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, string, error) // прям скачать результат
	Delete(ctx context.Context, id string) error                                      // удалить как в базе, так и в minio
	Preview(ctx context.Context, data *model.PreviewData) ([]byte, string, error)
}

func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{
		service: svc,
	}
}

type batchCreated struct {
	BatchID  string      `json:"batch_id"`
	Jobs     []model.Job `json:"jobs"`
	Warnings []string    `json:"warnings,omitempty"`
}

func (h JobHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

// CreateBatch - multipart: images (1..50), optional logo, settings as form fields
func (h JobHandler) CreateBatch(ctx *ginext.Context) {
	settings, warnings, ok := bindSettings(ctx)
	if !ok {
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "multipart form is required"})
		return
	}

	headers := form.File["images"]
	if len(headers) == 0 {
		ctx.JSON(400, map[string]string{"error": "at least one image is required"})
		return
	}
	if len(headers) > model.MaxBatchFiles {
		ctx.JSON(400, map[string]string{"error": model.ErrTooManyFiles.Error()})
		return
	}

	data := model.BatchCreateData{
		Settings: settings,
		Warnings: warnings,
		Images:   make([]model.UploadFile, 0, len(headers)),
	}

	// открытые файлы закрываем после ответа сервиса
	for _, fh := range headers {
		f, err := openUpload(fh)
		if err != nil {
			ctx.JSON(400, map[string]string{"error": err.Error()})
			closeUploads(data.Images)
			return
		}
		data.Images = append(data.Images, f)
	}
	defer closeUploads(data.Images)

	if logoHeaders := form.File["logo"]; len(logoHeaders) > 0 {
		logo, err := openUpload(logoHeaders[0])
		if err != nil {
			ctx.JSON(400, map[string]string{"error": err.Error()})
			return
		}
		defer closeFileFlow(logo.File)
		data.Logo = &logo
	}

	jobs, err := h.service.CreateBatch(ctx.Request.Context(), &data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	res := batchCreated{Jobs: jobs, Warnings: warnings}
	if len(jobs) > 0 {
		res.BatchID = jobs[0].BatchID.String()
	}
	ctx.JSON(201, res)
}

func (h JobHandler) GetBatch(ctx *ginext.Context) {
	res, err := h.service.GetBatch(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h JobHandler) GetAllJobs(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse query-params"})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h JobHandler) GetJob(ctx *ginext.Context) {
	res, err := h.service.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h JobHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, name, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		zlog.Logger.Error().Err(err).Int64("written", n).Str("job_id", id).Msg("Failed to write response")
	}
}

func (h JobHandler) Delete(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := h.service.Delete(ctx.Request.Context(), id); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

// Preview renders one image synchronously with the given settings
func (h JobHandler) Preview(ctx *ginext.Context) {
	settings, _, ok := bindSettings(ctx)
	if !ok {
		return
	}

	fh, err := ctx.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	img, err := openUpload(fh)
	if err != nil {
		ctx.JSON(400, map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(img.File)

	data := model.PreviewData{
		Settings: settings,
		Image:    img,
		Format:   ctx.PostForm("format"),
	}

	if lh, err := ctx.FormFile("logo"); err == nil {
		logo, err := openUpload(lh)
		if err != nil {
			ctx.JSON(400, map[string]string{"error": err.Error()})
			return
		}
		defer closeFileFlow(logo.File)
		data.Logo = &logo
	}

	res, cType, err := h.service.Preview(ctx.Request.Context(), &data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Data(200, cType, res)
}

// bindSettings writes the 400 response itself when the form is invalid
func bindSettings(ctx *ginext.Context) (model.Settings, []string, bool) {
	var form model.SettingsForm
	if err := ctx.ShouldBind(&form); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse settings: " + err.Error()})
		return model.Settings{}, nil, false
	}

	settings, warnings, err := form.ToSettings()
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return model.Settings{}, nil, false
	}
	return settings, warnings, true
}

func openUpload(fh *multipart.FileHeader) (model.UploadFile, error) {
	f, err := fh.Open()
	if err != nil {
		return model.UploadFile{}, fmt.Errorf("failed to read uploaded file %q: %w", fh.Filename, err)
	}
	return model.UploadFile{
		Name:        fh.Filename,
		File:        f,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}, nil
}

package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/gin-gonic/gin"
)

type mockJobService struct {
	createBatchFn func(ctx context.Context, d *model.BatchCreateData) ([]model.Job, error)
	getBatchFn    func(ctx context.Context, id string) (*model.BatchReport, error)
	getListFn     func(ctx context.Context, req *model.ListRequest) ([]model.Job, error)
	getFn         func(ctx context.Context, id string) (*model.Job, error)
	loadResultFn  func(ctx context.Context, id string) (io.ReadCloser, string, string, error)
	deleteFn      func(ctx context.Context, id string) error
	previewFn     func(ctx context.Context, d *model.PreviewData) ([]byte, string, error)
}

func (m *mockJobService) CreateBatch(ctx context.Context, d *model.BatchCreateData) ([]model.Job, error) {
	return m.createBatchFn(ctx, d)
}

func (m *mockJobService) GetBatch(ctx context.Context, id string) (*model.BatchReport, error) {
	return m.getBatchFn(ctx, id)
}

func (m *mockJobService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
	return m.getListFn(ctx, req)
}

func (m *mockJobService) Get(ctx context.Context, id string) (*model.Job, error) {
	return m.getFn(ctx, id)
}

func (m *mockJobService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, string, error) {
	return m.loadResultFn(ctx, id)
}

func (m *mockJobService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockJobService) Preview(ctx context.Context, d *model.PreviewData) ([]byte, string, error) {
	return m.previewFn(ctx, d)
}

func init() {
	gin.SetMode(gin.TestMode)
}

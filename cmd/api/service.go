package main

import (
	"context"
	"io"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
)

type JobAPIService interface {
	CreateBatch(ctx context.Context, data *model.BatchCreateData) ([]model.Job, error)
	GetBatch(ctx context.Context, id string) (*model.BatchReport, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, string, error)
	Delete(ctx context.Context, id string) error
	Preview(ctx context.Context, data *model.PreviewData) ([]byte, string, error)
	ReviveOrphans(ctx context.Context, limit int)
}

package main

import (
	"context"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
)

type JobWorkerService interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	SaveResult(ctx context.Context, job *model.Job) error
	MarkFailed(ctx context.Context, job *model.Job, reason error) error
}

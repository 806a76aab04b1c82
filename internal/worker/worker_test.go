package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"
	"time"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func encoded(w, h int, format imaging.Format) []byte {
	var buf bytes.Buffer
	_ = imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 100, G: 100, B: 200, A: 255}), format)
	return buf.Bytes()
}

func storageOf(files map[string][]byte, put func(key string, ct string, data []byte)) *mockStorage {
	return &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			data, ok := files[key]
			if !ok {
				return nil, "", errors.New("no such key")
			}
			return io.NopCloser(bytes.NewReader(data)), "", nil
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			if int64(len(data)) != size {
				return errors.New("size mismatch")
			}
			if put != nil {
				put(key, ct, data)
			}
			return nil
		},
	}
}

func okService(job *model.Job) *mockWorkerService {
	return &mockWorkerService{
		getFn: func(ctx context.Context, _ string) (*model.Job, error) {
			return job, nil
		},
		updateFn: func(ctx context.Context, _ string, st model.Status) error {
			job.Status = st
			return nil
		},
		saveResultFn: func(ctx context.Context, j *model.Job) error {
			j.Status = model.StatusDone
			return nil
		},
		markFailedFn: func(ctx context.Context, j *model.Job, reason error) error {
			j.Status = model.StatusFailed
			j.Log = append(j.Log, reason.Error())
			return nil
		},
	}
}

func TestWorker_initProcessor(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()
	fresh := time.Now()

	tests := []struct {
		name      string
		job       *model.Job
		getErr    error
		updateErr error
		wantErr   error
		anyErr    bool
	}{
		{
			name: "already done",
			job:  &model.Job{Status: model.StatusDone},
		},
		{
			name: "already failed",
			job:  &model.Job{Status: model.StatusFailed},
		},
		{
			name:    "in progress",
			job:     &model.Job{Status: model.StatusInProgress, UpdatedAt: &fresh},
			wantErr: errAlreadyInProgress,
		},
		{
			name:    "job not found",
			getErr:  model.ErrJobNotFound,
			wantErr: model.ErrJobNotFound,
		},
		{
			name:      "update status error",
			job:       &model.Job{Status: model.StatusCreated},
			updateErr: errors.New("db down"),
			anyErr:    true,
		},
		{
			name: "result already stored",
			job:  &model.Job{Status: model.StatusCreated, ResultKey: "results/x.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWorkerService{
				getFn: func(ctx context.Context, _ string) (*model.Job, error) {
					return tt.job, tt.getErr
				},
				updateFn: func(ctx context.Context, _ string, _ model.Status) error {
					return tt.updateErr
				},
			}

			w := &Worker{
				service:      svc,
				storage:      &mockStorage{},
				resultPrefix: "results/",
			}

			err := w.initProcessor(ctx, id)

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestWorker_processTask_OK(t *testing.T) {
	ctx := context.Background()

	job := &model.Job{
		UID:       uuid.New(),
		FileName:  "wide.png",
		Status:    model.StatusInProgress,
		SourceKey: "sources/wide.png",
		Settings:  model.DefaultSettings(),
	}

	var putKey, putCT string
	var putData []byte
	storage := storageOf(map[string][]byte{job.SourceKey: encoded(100, 50, imaging.PNG)}, func(key, ct string, data []byte) {
		putKey, putCT, putData = key, ct, data
	})

	w := &Worker{
		storage:      storage,
		service:      okService(job),
		resultPrefix: "results/",
	}

	require.NoError(t, w.processTask(ctx, job))
	require.Equal(t, "results/"+job.UID.String()+".jpg", putKey)
	require.Equal(t, model.JPEG, putCT)
	require.Equal(t, putKey, job.ResultKey)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(putData))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 100, cfg.Width)
	require.Equal(t, 100, cfg.Height)
}

func TestWorker_processTask_Logo(t *testing.T) {
	s := model.DefaultSettings()
	s.Mode = model.ModeStretch
	s.Aspect = model.AspectPresets["16:9"]
	s.Watermark.Kind = model.WatermarkLogo

	job := &model.Job{
		UID:       uuid.New(),
		SourceKey: "sources/a.jpg",
		LogoKey:   "logos/b.png",
		Settings:  s,
	}

	files := map[string][]byte{
		job.SourceKey: encoded(160, 160, imaging.JPEG),
		job.LogoKey:   encoded(20, 10, imaging.PNG),
	}
	w := &Worker{storage: storageOf(files, nil), service: okService(job), resultPrefix: "results/"}
	require.NoError(t, w.processTask(context.Background(), job))

	// без логотипа в хранилище задача падает
	delete(files, job.LogoKey)
	err := w.processTask(context.Background(), job)
	require.ErrorIs(t, err, model.ErrFileAccess)
}

func TestWorker_processTask_BaseImageError(t *testing.T) {
	w := &Worker{
		storage: &mockStorage{
			getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
				return nil, "", errors.New("storage down")
			},
		},
	}

	err := w.processTask(context.Background(), &model.Job{Settings: model.DefaultSettings()})
	require.ErrorIs(t, err, model.ErrFileAccess)
}

func TestWorker_initProcessor_InfrastructureError(t *testing.T) {
	job := &model.Job{
		UID:       uuid.New(),
		SourceKey: "sources/a.png",
		Status:    model.StatusCreated,
		Settings:  model.DefaultSettings(),
	}
	svc := okService(job)
	svc.markFailedFn = func(ctx context.Context, j *model.Job, reason error) error {
		t.Fatalf("job must not be marked failed on %v", reason)
		return nil
	}
	storage := storageOf(map[string][]byte{job.SourceKey: encoded(10, 10, imaging.PNG)}, nil)
	storage.putFn = func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
		return errors.New("minio down")
	}

	w := &Worker{storage: storage, service: svc, resultPrefix: "results/"}

	err := w.initProcessor(context.Background(), job.UID.String())
	require.ErrorIs(t, err, errInfrastructure)
	require.Empty(t, job.ResultKey)
	require.Equal(t, model.StatusInProgress, job.Status)
}

func TestWorker_processTask_UnsupportedFormat(t *testing.T) {
	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader([]byte("not-an-image"))), "", nil
		},
	}

	w := &Worker{storage: storage}

	err := w.processTask(context.Background(), &model.Job{Settings: model.DefaultSettings()})
	require.ErrorIs(t, err, model.ErrUnsupportedFormat)
}

func TestWorker_handleMessage(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string][]byte
		getErr     error
		putErr     error
		saveErr    error
		wantStatus model.Status
		wantCommit bool
	}{
		{
			name:       "processed",
			files:      map[string][]byte{"sources/a.png": encoded(30, 20, imaging.PNG)},
			wantStatus: model.StatusDone,
			wantCommit: true,
		},
		{
			name:       "corrupt file is marked failed and committed",
			files:      map[string][]byte{"sources/a.png": []byte("garbage")},
			wantStatus: model.StatusFailed,
			wantCommit: true,
		},
		{
			name:       "unknown job is committed",
			getErr:     model.ErrJobNotFound,
			wantStatus: model.StatusCreated,
			wantCommit: true,
		},
		{
			name:       "db failure is not committed",
			getErr:     errors.New("db down"),
			wantStatus: model.StatusCreated,
			wantCommit: false,
		},
		{
			name:       "storage put failure is not committed",
			files:      map[string][]byte{"sources/a.png": encoded(30, 20, imaging.PNG)},
			putErr:     errors.New("minio down"),
			wantStatus: model.StatusInProgress,
			wantCommit: false,
		},
		{
			name:       "save result failure is not committed",
			files:      map[string][]byte{"sources/a.png": encoded(30, 20, imaging.PNG)},
			saveErr:    errors.New("db down"),
			wantStatus: model.StatusInProgress,
			wantCommit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &model.Job{
				UID:       uuid.New(),
				FileName:  "a.png",
				SourceKey: "sources/a.png",
				Status:    model.StatusCreated,
				Settings:  model.DefaultSettings(),
			}
			svc := okService(job)
			if tt.getErr != nil {
				svc.getFn = func(ctx context.Context, _ string) (*model.Job, error) { return nil, tt.getErr }
			}
			if tt.saveErr != nil {
				svc.saveResultFn = func(ctx context.Context, _ *model.Job) error { return tt.saveErr }
			}
			markFailed := svc.markFailedFn
			svc.markFailedFn = func(ctx context.Context, j *model.Job, reason error) error {
				require.NotErrorIs(t, reason, errInfrastructure)
				return markFailed(ctx, j, reason)
			}
			storage := storageOf(tt.files, nil)
			if tt.putErr != nil {
				storage.putFn = func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
					return tt.putErr
				}
			}
			cons := &mockCommitter{}

			w := NewWorkerInstance(storage, svc, nil, cons, "results/")
			w.handleMessage(context.Background(), kafkago.Message{Key: []byte(job.UID.String())})

			require.Equal(t, tt.wantStatus, job.Status)
			if tt.wantCommit {
				require.Len(t, cons.committed, 1)
			} else {
				require.Empty(t, cons.committed)
			}
			if tt.wantStatus == model.StatusFailed {
				require.Len(t, job.Log, 1)
			}
		})
	}
}

func TestWorker_StartWorker_Stops(t *testing.T) {
	queue := make(chan kafkago.Message)
	close(queue)

	w := NewWorkerInstance(nil, nil, queue, &mockCommitter{}, "results/")

	done := make(chan struct{})
	go func() {
		w.StartWorker(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on closed queue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewWorkerInstance(nil, nil, make(chan kafkago.Message), &mockCommitter{}, "").StartWorker(ctx)
}

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

type formFile struct {
	field string
	name  string
	data  []byte
}

func newMultipartRequest(t *testing.T, target string, fields map[string]string, files []formFile) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func images(n int) []formFile {
	res := make([]formFile, n)
	for i := range res {
		res[i] = formFile{field: "images", name: fmt.Sprintf("img%d.jpg", i), data: []byte("img")}
	}
	return res
}

func TestJobHandler_Ping(t *testing.T) {
	r := gin.New()
	h := NewJobHandler(nil)

	r.GET("/ping", func(c *gin.Context) {
		h.SimplePinger((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "pong", body["message"])
}

func TestJobHandler_CreateBatch(t *testing.T) {
	batchID := uuid.New()

	tests := []struct {
		name       string
		req        *http.Request
		mock       *mockJobService
		wantStatus int
	}{
		{
			name: "success",
			req: newMultipartRequest(t, "/batches",
				map[string]string{"mode": "fill", "watermark": "text", "text": "(c) me", "opacity": "50"},
				images(2),
			),
			mock: &mockJobService{
				createBatchFn: func(ctx context.Context, d *model.BatchCreateData) ([]model.Job, error) {
					require.Len(t, d.Images, 2)
					require.Nil(t, d.Logo)
					require.Equal(t, model.ModeFill, d.Settings.Mode)
					require.Equal(t, "(c) me", d.Settings.Watermark.Text)
					require.Equal(t, 50, d.Settings.Watermark.Opacity)
					return []model.Job{{BatchID: batchID}, {BatchID: batchID}}, nil
				},
			},
			wantStatus: 201,
		},
		{
			name: "with logo",
			req: newMultipartRequest(t, "/batches",
				map[string]string{"watermark": "logo"},
				append(images(1), formFile{field: "logo", name: "logo.png", data: []byte("logo")}),
			),
			mock: &mockJobService{
				createBatchFn: func(ctx context.Context, d *model.BatchCreateData) ([]model.Job, error) {
					require.NotNil(t, d.Logo)
					require.Equal(t, "logo.png", d.Logo.Name)
					require.EqualValues(t, 4, d.Logo.Size)
					return []model.Job{{BatchID: batchID}}, nil
				},
			},
			wantStatus: 201,
		},
		{
			name:       "missing images",
			req:        newMultipartRequest(t, "/batches", map[string]string{"mode": "fit"}, nil),
			mock:       &mockJobService{},
			wantStatus: 400,
		},
		{
			name:       "too many images",
			req:        newMultipartRequest(t, "/batches", nil, images(model.MaxBatchFiles+1)),
			mock:       &mockJobService{},
			wantStatus: 400,
		},
		{
			name:       "invalid mode",
			req:        newMultipartRequest(t, "/batches", map[string]string{"mode": "zoom"}, images(1)),
			mock:       &mockJobService{},
			wantStatus: 400,
		},
		{
			name:       "font size not a number",
			req:        newMultipartRequest(t, "/batches", map[string]string{"font_size": "big"}, images(1)),
			mock:       &mockJobService{},
			wantStatus: 400,
		},
		{
			name: "logo missing",
			req:  newMultipartRequest(t, "/batches", map[string]string{"watermark": "logo"}, images(1)),
			mock: &mockJobService{
				createBatchFn: func(ctx context.Context, d *model.BatchCreateData) ([]model.Job, error) {
					return nil, model.ErrEmptyLogo
				},
			},
			wantStatus: 400,
		},
		{
			name: "service failure",
			req:  newMultipartRequest(t, "/batches", nil, images(1)),
			mock: &mockJobService{
				createBatchFn: func(ctx context.Context, d *model.BatchCreateData) ([]model.Job, error) {
					return nil, model.ErrCommon500
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewJobHandler(tt.mock)

			r.POST("/batches", func(c *gin.Context) {
				h.CreateBatch((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == 201 {
				var body batchCreated
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				require.Equal(t, batchID.String(), body.BatchID)
			}
		})
	}
}

func TestJobHandler_CreateBatch_AspectWarning(t *testing.T) {
	mock := &mockJobService{
		createBatchFn: func(ctx context.Context, d *model.BatchCreateData) ([]model.Job, error) {
			require.Equal(t, model.AspectPresets[model.DefaultAspect], d.Settings.Aspect)
			require.Len(t, d.Warnings, 1)
			return []model.Job{{}}, nil
		},
	}

	r := gin.New()
	h := NewJobHandler(mock)
	r.POST("/batches", func(c *gin.Context) {
		h.CreateBatch((*ginext.Context)(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newMultipartRequest(t, "/batches", map[string]string{"aspect": "oops"}, images(1)))

	require.Equal(t, 201, w.Code)

	var body batchCreated
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Warnings, 1)
}

func TestJobHandler_GetBatch(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "success", wantStatus: 200},
		{name: "not found", err: model.ErrBatchNotFound, wantStatus: 404},
		{name: "bad id", err: model.ErrIncorrectID, wantStatus: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewJobHandler(&mockJobService{
				getBatchFn: func(ctx context.Context, id string) (*model.BatchReport, error) {
					require.Equal(t, "abc", id)
					if tt.err != nil {
						return nil, tt.err
					}
					return model.NewBatchReport(uuid.New(), []model.Job{{Status: model.StatusDone}}), nil
				},
			})

			r.GET("/batches/:id", func(c *gin.Context) {
				h.GetBatch((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/batches/abc", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == 200 {
				var rep model.BatchReport
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
				require.Equal(t, "1/1", rep.Summary)
			}
		})
	}
}

func TestJobHandler_GetAllJobs(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		mock       *mockJobService
		wantStatus int
	}{
		{
			name:  "success",
			query: "?page=1&limit=10&sort=uid&order=ascend",
			mock: &mockJobService{
				getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
					require.Equal(t, 10, req.Limit)
					require.Equal(t, model.ByUUID, req.Sort)
					return []model.Job{{}}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "bad query",
			query:      "?page=abc",
			mock:       &mockJobService{},
			wantStatus: 400,
		},
		{
			name:  "service error",
			query: "",
			mock: &mockJobService{
				getListFn: func(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
					return nil, model.ErrCommon500
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewJobHandler(tt.mock)

			r.GET("/jobs", func(c *gin.Context) {
				h.GetAllJobs((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/jobs"+tt.query, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestJobHandler_GetJob(t *testing.T) {
	id := uuid.New()

	r := gin.New()
	h := NewJobHandler(&mockJobService{
		getFn: func(ctx context.Context, raw string) (*model.Job, error) {
			if raw != id.String() {
				return nil, model.ErrJobNotFound
			}
			return &model.Job{UID: id, FileName: "cat.png", Status: model.StatusDone}, nil
		},
	})
	r.GET("/jobs/:id", func(c *gin.Context) {
		h.GetJob((*ginext.Context)(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+id.String(), nil))
	require.Equal(t, 200, w.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	require.Equal(t, id, job.UID)
	require.Equal(t, model.StatusDone, job.Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.New().String(), nil))
	require.Equal(t, 404, w.Code)
}

func TestJobHandler_LoadResult(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockJobService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockJobService{
				loadResultFn: func(ctx context.Context, id string) (io.ReadCloser, string, string, error) {
					return io.NopCloser(bytes.NewReader([]byte("ok"))), model.JPEG, "cat_resized.jpg", nil
				},
			},
			wantStatus: 200,
		},
		{
			name: "not ready",
			mock: &mockJobService{
				loadResultFn: func(ctx context.Context, id string) (io.ReadCloser, string, string, error) {
					return nil, "", "", model.ErrResultNotReady
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewJobHandler(tt.mock)

			r.GET("/jobs/:id/result", func(c *gin.Context) {
				h.LoadResult((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/jobs/123/result", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == 200 {
				require.Equal(t, model.JPEG, w.Header().Get("Content-Type"))
				require.Contains(t, w.Header().Get("Content-Disposition"), `filename="cat_resized.jpg"`)
				require.Equal(t, "ok", w.Body.String())
			}
		})
	}
}

func TestJobHandler_Delete(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockJobService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockJobService{
				deleteFn: func(ctx context.Context, id string) error {
					return nil
				},
			},
			wantStatus: 204,
		},
		{
			name: "not found",
			mock: &mockJobService{
				deleteFn: func(ctx context.Context, id string) error {
					return model.ErrJobNotFound
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewJobHandler(tt.mock)

			r.DELETE("/jobs/:id", func(c *gin.Context) {
				h.Delete((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodDelete, "/jobs/123", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestJobHandler_Preview(t *testing.T) {
	tests := []struct {
		name       string
		req        *http.Request
		mock       *mockJobService
		wantStatus int
	}{
		{
			name: "success",
			req: newMultipartRequest(t, "/preview",
				map[string]string{"format": "png", "aspect": "16:9"},
				[]formFile{{field: "image", name: "a.png", data: []byte("img")}},
			),
			mock: &mockJobService{
				previewFn: func(ctx context.Context, d *model.PreviewData) ([]byte, string, error) {
					require.Equal(t, "png", d.Format)
					require.Equal(t, "a.png", d.Image.Name)
					require.Equal(t, model.AspectPresets["16:9"], d.Settings.Aspect)
					return []byte("rendered"), model.PNG, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "missing image",
			req:        newMultipartRequest(t, "/preview", map[string]string{"format": "png"}, nil),
			mock:       &mockJobService{},
			wantStatus: 400,
		},
		{
			name: "unsupported format",
			req: newMultipartRequest(t, "/preview", nil,
				[]formFile{{field: "image", name: "a.txt", data: []byte("text")}},
			),
			mock: &mockJobService{
				previewFn: func(ctx context.Context, d *model.PreviewData) ([]byte, string, error) {
					return nil, "", model.ErrUnsupportedFormat
				},
			},
			wantStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewJobHandler(tt.mock)

			r.POST("/preview", func(c *gin.Context) {
				h.Preview((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == 200 {
				require.Equal(t, model.PNG, w.Header().Get("Content-Type"))
				require.Equal(t, "rendered", w.Body.String())
			}
		})
	}
}

func TestErrorCodeDefiner(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: model.ErrCommon500, want: 500},
		{err: model.ErrJobNotFound, want: 404},
		{err: model.ErrBatchNotFound, want: 404},
		{err: model.ErrResultNotReady, want: 404},
		{err: fmt.Errorf("wrapped: %w", model.ErrInvalidArgument), want: 400},
		{err: model.ErrTooManyFiles, want: 400},
		{err: model.ErrUnsupportedLogoFormat, want: 400},
		{err: io.EOF, want: 500},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, errorCodeDefiner(tt.err))
		})
	}
}

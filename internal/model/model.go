// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
)

var StatusMap = map[Status]bool{
	StatusCreated:    true,
	StatusInProgress: true,
	StatusFailed:     true,
	StatusDone:       true,
}

//---------------------

// Job is one image of an uploaded batch, processed by the worker
type Job struct {
	UID       uuid.UUID   `json:"uid"`
	BatchID   uuid.UUID   `json:"batch_id"`
	FileName  string      `json:"file_name"`
	SourceKey string      `json:"-"`
	LogoKey   string      `json:"-"`
	ResultKey string      `json:"-"`
	Settings  Settings    `json:"settings"`
	Status    Status      `json:"status,omitempty"`
	Log       StringSlice `json:"log,omitempty"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

// BatchReport summarizes all jobs of one upload
type BatchReport struct {
	BatchID uuid.UUID `json:"batch_id"`
	Total   int       `json:"total"`
	Success int       `json:"success"`
	Failed  int       `json:"failed"`
	Pending int       `json:"pending"`
	Summary string    `json:"summary"`
	Jobs    []Job     `json:"jobs"`
}

// NewBatchReport counts statuses of jobs; Summary is "{success}/{total}"
func NewBatchReport(batchID uuid.UUID, jobs []Job) *BatchReport {
	rep := &BatchReport{BatchID: batchID, Total: len(jobs), Jobs: jobs}
	for _, j := range jobs {
		switch j.Status {
		case StatusDone:
			rep.Success++
		case StatusFailed:
			rep.Failed++
		default:
			rep.Pending++
		}
	}
	rep.Summary = fmt.Sprintf("%d/%d", rep.Success, rep.Total)
	return rep
}

// ResultName is the download name of a processed file: {base}_resized.jpg
func ResultName(fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return base + ResultSuffix + ".jpg"
}

const ResultSuffix = "_resized"

//-------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByUUID    = "uid"
	ByCreated = "created"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

// UploadFile is one multipart file handed from transport to service
type UploadFile struct {
	Name        string
	File        multipart.File
	ContentType string
	Size        int64
}

type BatchCreateData struct {
	Settings Settings
	Warnings []string
	Images   []UploadFile
	Logo     *UploadFile
}

type PreviewData struct {
	Settings Settings
	Image    UploadFile
	Logo     *UploadFile
	Format   string
}

const MaxBatchFiles = 50

// ------------------

// core error kinds
var (
	ErrInvalidArgument error = errors.New("invalid argument")
	ErrFileAccess      error = errors.New("file access error")
	ErrUnsupportedMode error = errors.New("unsupported composition mode")
)

var (
	ErrCommon500             error = errors.New("something went wrong. Try again later")     // 500
	ErrIncorrectQuery        error = errors.New("incorrect query parameters")                // 400
	ErrIncorrectID           error = errors.New("incorrect UUID")                            // 400
	ErrJobNotFound           error = errors.New("specified job UUID doesn't exist")          // 404
	ErrBatchNotFound         error = errors.New("specified batch UUID doesn't exist")        // 404
	ErrResultNotReady        error = errors.New("requested image is not processed yet")      // 404
	ErrEmptySource           error = errors.New("empty/incorrect source image provided")     // 400
	ErrTooManyFiles          error = errors.New("too many images in one batch")              // 400
	ErrEmptyLogo             error = errors.New("logo watermark selected but no logo given") // 400
	ErrUnsupportedLogoFormat error = errors.New("unsupported logo-image format")             // 400
	ErrUnsupportedFormat     error = errors.New("unsupported image format")                  // 400
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	BMP  = "image/bmp"
	WEBP = "image/webp"
	GIF  = "image/gif"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	BMP:  ".bmp",
	WEBP: ".webp",
	GIF:  ".gif",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	BMP:  true,
	WEBP: true,
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.PNG:  PNG,
	imaging.BMP:  BMP,
	imaging.GIF:  GIF,
}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type %T for StringSlice", value)
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal StringSlice to JSONB: %w", err)
	}

	return res, nil
}

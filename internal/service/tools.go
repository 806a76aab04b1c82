package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/disintegration/imaging"
)

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}

	// Валидируем поле типа сортировки
	req.Sort = strings.TrimSpace(strings.ToLower(req.Sort))
	switch {
	case strings.Contains(req.Sort, model.ByUUID):
		req.Sort = "job_uid"
	default:
		req.Sort = "created_at" // по дефолту ставим сортировку по времени создания
	}

	// Валадируем порядок
	req.Order = strings.TrimSpace(strings.ToLower(req.Order))
	switch {
	case strings.Contains(req.Order, model.OrderASC):
		req.Order = "ASC"
	default:
		req.Order = "DESC" // по дефолту ставим сортировку "новое-выше"
	}
}

var extContentType = map[string]string{
	".jpg":  model.JPEG,
	".jpeg": model.JPEG,
	".png":  model.PNG,
	".bmp":  model.BMP,
	".webp": model.WEBP,
}

// detectContentType trusts the multipart header when it names a supported type,
// otherwise falls back to the file extension
func detectContentType(name, cType string) string {
	cType = strings.ToLower(strings.TrimSpace(cType))
	if model.InImageTypeMap[cType] {
		return cType
	}
	return extContentType[strings.ToLower(filepath.Ext(name))]
}

// validateUpload returns the content type of f or errKind
func validateUpload(f *model.UploadFile, errKind error) (string, error) {
	if f == nil || f.File == nil || f.Size <= 0 {
		return "", errKind
	}
	cType := detectContentType(f.Name, f.ContentType)
	if cType == "" {
		return "", fmt.Errorf("%w: %q", errKind, f.Name)
	}
	return cType, nil
}

// validateBatch checks count, types and settings; returns content types per image and of the logo
func validateBatch(data *model.BatchCreateData) ([]string, string, error) {
	if data == nil || len(data.Images) == 0 {
		return nil, "", model.ErrEmptySource
	}
	if len(data.Images) > model.MaxBatchFiles {
		return nil, "", model.ErrTooManyFiles
	}
	if err := data.Settings.Validate(); err != nil {
		return nil, "", err
	}

	types := make([]string, len(data.Images))
	for i := range data.Images {
		cType, err := validateUpload(&data.Images[i], model.ErrEmptySource)
		if err != nil {
			return nil, "", err
		}
		types[i] = cType
	}

	if data.Settings.Watermark.Kind != model.WatermarkLogo {
		return types, "", nil
	}
	if data.Logo == nil {
		return nil, "", model.ErrEmptyLogo
	}
	logoType, err := validateUpload(data.Logo, model.ErrUnsupportedLogoFormat)
	if err != nil {
		return nil, "", err
	}
	return types, logoType, nil
}

// previewKey hashes everything that affects the rendered bytes
func previewKey(s model.Settings, format imaging.Format, src, logo []byte) (string, error) {
	settings, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write(settings)
	h.Write([]byte{0, byte(format), 0})
	h.Write(src)
	h.Write([]byte{0})
	h.Write(logo)
	return hex.EncodeToString(h.Sum(nil)), nil
}

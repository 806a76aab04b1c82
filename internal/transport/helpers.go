package transport

import (
	"errors"
	"io"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/wb-go/wbf/zlog"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrJobNotFound),
		errors.Is(err, model.ErrBatchNotFound),
		errors.Is(err, model.ErrResultNotReady):
		return 404
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrTooManyFiles),
		errors.Is(err, model.ErrEmptyLogo),
		errors.Is(err, model.ErrUnsupportedLogoFormat),
		errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, model.ErrUnsupportedMode),
		errors.Is(err, model.ErrInvalidArgument):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}

func closeUploads(files []model.UploadFile) {
	for _, f := range files {
		closeFileFlow(f.File)
	}
}

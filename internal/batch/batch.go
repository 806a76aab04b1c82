package batch

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/UnendingLoop/PhotoResizer/internal/imageproc"
	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
)

// Renderer is the per-image transform applied by the batch.
type Renderer interface {
	Render(src image.Image) (image.Image, error)
}

// Event is one append-only progress message of a running batch.
type Event struct {
	Index   int // 1-based position of Source in the batch
	Total   int
	Source  string
	Output  string
	Err     error
	Message string
}

type FileError struct {
	Source string
	Err    error
}

type Report struct {
	Success int
	Total   int
	Failed  []FileError
}

func (r Report) String() string {
	return fmt.Sprintf("%d/%d", r.Success, r.Total)
}

type Runner struct {
	renderer Renderer
	outDir   string
	logger   zlog.Zerolog
}

func NewRunner(r Renderer, outDir string) *Runner {
	return &Runner{
		renderer: r,
		outDir:   outDir,
		logger:   zlog.Logger.With().Str("component", "batch").Logger(),
	}
}

// Start runs the batch on its own goroutine. The event channel is closed once
// the last file is handled; the report is delivered after that.
func (r *Runner) Start(files []string) (<-chan Event, <-chan Report) {
	events := make(chan Event, len(files)+1)
	report := make(chan Report, 1)

	go func() {
		defer close(report)
		rep := r.Run(files, events)
		close(events)
		report <- rep
	}()

	return events, report
}

// Run processes files one after another. A failing file is logged, reported
// and counted; the rest of the batch still runs. events may be nil.
func (r *Runner) Run(files []string, events chan<- Event) Report {
	rep := Report{Total: len(files)}
	emit := func(ev Event) {
		if events != nil {
			events <- ev
		}
	}

	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		err = fmt.Errorf("%w: create output dir %q: %v", model.ErrFileAccess, r.outDir, err)
		r.logger.Error().Err(err).Msg("Batch aborted before the first file")
		for i, src := range files {
			rep.Failed = append(rep.Failed, FileError{Source: src, Err: err})
			emit(Event{Index: i + 1, Total: rep.Total, Source: src, Err: err, Message: "failed: " + err.Error()})
		}
		return rep
	}

	for i, src := range files {
		out := OutputPath(r.outDir, src)
		ev := Event{Index: i + 1, Total: rep.Total, Source: src, Output: out}

		if err := r.processFile(src, out); err != nil {
			r.logger.Error().Err(err).Str("file", src).Msg("Failed to process file")
			rep.Failed = append(rep.Failed, FileError{Source: src, Err: err})
			ev.Err = err
			ev.Message = fmt.Sprintf("[%d/%d] %s: failed: %v", ev.Index, ev.Total, filepath.Base(src), err)
			emit(ev)
			continue
		}

		rep.Success++
		ev.Message = fmt.Sprintf("[%d/%d] %s -> %s", ev.Index, ev.Total, filepath.Base(src), filepath.Base(out))
		r.logger.Info().Str("file", src).Str("output", out).Msg("File processed")
		emit(ev)
	}

	r.logger.Info().Int("success", rep.Success).Int("total", rep.Total).Msg("Batch finished")
	return rep
}

func (r *Runner) processFile(src, dst string) error {
	img, err := imageproc.Open(src)
	if err != nil {
		return err
	}

	res, err := r.renderer.Render(img)
	if err != nil {
		return fmt.Errorf("render %q: %w", src, err)
	}

	return save(res, dst, imaging.JPEG)
}

// SaveSingle renders one file to dst; the format follows dst's extension
// (.jpg/.jpeg is JPEG, anything else PNG).
func SaveSingle(r Renderer, src, dst string) error {
	if src == "" || dst == "" {
		return errors.New("source and destination paths are required")
	}

	img, err := imageproc.Open(src)
	if err != nil {
		return err
	}

	res, err := r.Render(img)
	if err != nil {
		return fmt.Errorf("render %q: %w", src, err)
	}

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create dir %q: %v", model.ErrFileAccess, dir, err)
		}
	}
	return save(res, dst, imageproc.FormatForPath(dst))
}

func save(img image.Image, dst string, format imaging.Format) (err error) {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrFileAccess, err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("%w: %v", model.ErrFileAccess, cErr)
		}
	}()

	if err := imageproc.Encode(f, img, format); err != nil {
		return fmt.Errorf("encode %q: %w", dst, err)
	}
	return nil
}

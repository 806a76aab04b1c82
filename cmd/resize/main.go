// Package main (in resize-subfolder) is the local batch resizer: it takes files
// and folders, renders every image with one set of settings and writes the
// results into the output folder.
package main

import (
	"fmt"
	"image"
	"log"
	"os"

	"github.com/UnendingLoop/PhotoResizer/internal/batch"
	"github.com/UnendingLoop/PhotoResizer/internal/imageproc"
	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

const defaultOutDir = "./resized"

type options struct {
	form    model.SettingsForm
	outDir  string
	single  string
	logo    string
	envFile string
}

func parseFlags(args []string) (*options, []string, error) {
	o := &options{}
	fs := pflag.NewFlagSet("resize", pflag.ContinueOnError)

	fs.StringVar(&o.form.Aspect, "aspect", model.DefaultAspect, "target aspect: 1:1, 4:5, 9:16, 16:9, 3:2 or custom a:b")
	fs.StringVar(&o.form.Mode, "mode", string(model.ModeFit), "fit, fill or stretch")
	fs.StringVar(&o.form.Crop, "crop", string(model.CropCenter), "crop anchor for fill mode: center or smart")
	fs.StringVar(&o.form.Background, "background", string(model.BackgroundColor), "fit background: color or blur")
	fs.StringVar(&o.form.BgColor, "bg-color", model.DefaultBgColor, "fit background color (#rgb, #rrggbb or r,g,b)")
	fs.StringVar(&o.form.Watermark, "watermark", string(model.WatermarkNone), "none, text or logo")
	fs.StringVar(&o.form.Text, "text", "", "watermark text")
	fs.StringVar(&o.form.FontName, "font", "", "font file name or path")
	fs.IntVar(&o.form.FontSize, "font-size", model.DefaultFontSize, "font size, 12..96")
	fs.StringVar(&o.form.TextColor, "text-color", model.DefaultTextColor, "text color")
	fs.StringVar(&o.form.Position, "position", string(model.BottomRight), "bottom-right, bottom-left, top-left, top-right or center")
	fs.IntVar(&o.form.Opacity, "opacity", model.DefaultOpacity, "watermark opacity, 10..100")
	fs.Float64Var(&o.form.LogoScale, "logo-scale", model.DefaultLogoScale, "logo width as a share of the image width")
	fs.Float64Var(&o.form.LogoMargin, "logo-margin", model.DefaultMarginRatio, "logo margin as a share of the image width")

	fs.StringVarP(&o.outDir, "out", "o", defaultOutDir, "output folder for batch mode")
	fs.StringVar(&o.single, "single", "", "render only the first input into this file (.jpg/.jpeg is JPEG, otherwise PNG)")
	fs.StringVar(&o.logo, "logo", "", "logo image for the logo watermark")
	fs.StringVar(&o.envFile, "env", "", "optional .env file with LOG_LEVEL and DEFAULT_FONT")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return o, fs.Args(), nil
}

func main() {
	opts, inputs, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	// конфиг тут опционален: энвы + .env по флагу
	appConfig := config.New()
	appConfig.EnableEnv("")
	if opts.envFile != "" {
		if err := appConfig.LoadEnvFiles(opts.envFile); err != nil {
			log.Fatalf("Failed to load envs: %s\nExiting app...", err)
		}
	}

	zlog.InitConsole()
	level := appConfig.GetString("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	if err := zlog.SetLevel(level); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	if opts.form.FontName == "" {
		opts.form.FontName = appConfig.GetString("DEFAULT_FONT")
	}

	os.Exit(run(opts, inputs))
}

func run(opts *options, inputs []string) int {
	if len(inputs) == 0 {
		zlog.Logger.Error().Msg("No input files or folders given")
		return 2
	}
	if opts.single != "" && len(inputs) != 1 {
		zlog.Logger.Error().Int("inputs", len(inputs)).Msg("--single takes exactly one input file")
		return 2
	}

	settings, warnings, err := opts.form.ToSettings()
	for _, w := range warnings {
		zlog.Logger.Warn().Msg(w)
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Invalid settings")
		return 2
	}

	var logo image.Image
	if settings.Watermark.Kind == model.WatermarkLogo {
		if opts.logo == "" {
			zlog.Logger.Warn().Msg("Logo watermark selected but no logo given; images are saved without it")
		} else if logo, err = imageproc.Open(opts.logo); err != nil {
			zlog.Logger.Error().Err(err).Str("logo", opts.logo).Msg("Failed to load logo")
			return 1
		}
	}

	renderer, err := imageproc.NewRenderer(settings, logo)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("Failed to prepare renderer")
		return 2
	}

	files, errs := batch.Collect(inputs)
	for _, e := range errs {
		zlog.Logger.Warn().Err(e).Msg("Skipped input")
	}
	if len(files) == 0 {
		zlog.Logger.Error().Msg("No supported images found")
		return 1
	}

	if opts.single != "" {
		// папка на входе тоже может раскрыться в несколько файлов
		if len(files) != 1 {
			zlog.Logger.Error().Int("files", len(files)).Msg("--single takes exactly one input file")
			return 2
		}
		if err := batch.SaveSingle(renderer, files[0], opts.single); err != nil {
			zlog.Logger.Error().Err(err).Str("file", files[0]).Msg("Failed to save image")
			return 1
		}
		fmt.Printf("saved: %s\n", opts.single)
		return 0
	}

	events, report := batch.NewRunner(renderer, opts.outDir).Start(files)
	for ev := range events {
		fmt.Println(ev.Message)
	}
	rep := <-report

	fmt.Printf("done: %s\n", rep)
	if len(rep.Failed) > 0 {
		return 1
	}
	return 0
}

package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

type (
	Mode           string
	CropAnchor     string
	BackgroundKind string
	WatermarkKind  string
	Position       string
)

const (
	ModeFit     Mode = "fit"
	ModeFill    Mode = "fill"
	ModeStretch Mode = "stretch"
)

const (
	CropCenter CropAnchor = "center"
	CropSmart  CropAnchor = "smart"
)

const (
	BackgroundColor BackgroundKind = "color"
	BackgroundBlur  BackgroundKind = "blur"
)

const (
	WatermarkNone WatermarkKind = "none"
	WatermarkText WatermarkKind = "text"
	WatermarkLogo WatermarkKind = "logo"
)

const (
	BottomRight Position = "bottom-right"
	BottomLeft  Position = "bottom-left"
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	Center      Position = "center"
)

// Aspect is a W:H ratio, both parts positive
type Aspect struct {
	W float64 `json:"w" validate:"gt=0"`
	H float64 `json:"h" validate:"gt=0"`
}

func (a Aspect) String() string {
	return strconv.FormatFloat(a.W, 'f', -1, 64) + ":" + strconv.FormatFloat(a.H, 'f', -1, 64)
}

const DefaultAspect = "1:1"

// MaxAspectRatio bounds the long side of a custom aspect against the short one.
const MaxAspectRatio = 100

// AspectPresets are the named social-media ratios
var AspectPresets = map[string]Aspect{
	"1:1":  {W: 1, H: 1},
	"4:5":  {W: 4, H: 5},
	"9:16": {W: 9, H: 16},
	"16:9": {W: 16, H: 9},
	"3:2":  {W: 3, H: 2},
}

// ParseAspect accepts a preset name or a custom "a:b" pair of positive numbers.
func ParseAspect(raw string) (Aspect, error) {
	raw = strings.TrimSpace(raw)
	if a, ok := AspectPresets[raw]; ok {
		return a, nil
	}

	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return Aspect{}, fmt.Errorf("%w: aspect %q must look like W:H", ErrInvalidArgument, raw)
	}
	w, errW := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	h, errH := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errW != nil || errH != nil {
		return Aspect{}, fmt.Errorf("%w: aspect %q is not numeric", ErrInvalidArgument, raw)
	}
	if !validRatioPart(w) || !validRatioPart(h) {
		return Aspect{}, fmt.Errorf("%w: aspect %q must have positive parts", ErrInvalidArgument, raw)
	}
	a := Aspect{W: w, H: h}
	if !a.inRange() {
		return Aspect{}, fmt.Errorf("%w: aspect %q is more extreme than 1:%d", ErrInvalidArgument, raw, MaxAspectRatio)
	}
	return a, nil
}

func validRatioPart(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func (a Aspect) inRange() bool {
	return math.Max(a.W, a.H)/math.Min(a.W, a.H) <= MaxAspectRatio
}

type Background struct {
	Kind  BackgroundKind `json:"kind" validate:"oneof=color blur"`
	Color string         `json:"color"`
}

type Watermark struct {
	Kind        WatermarkKind `json:"kind" validate:"oneof=none text logo"`
	Position    Position      `json:"position" validate:"oneof=bottom-right bottom-left top-left top-right center"`
	Opacity     int           `json:"opacity" validate:"min=10,max=100"`
	Text        string        `json:"text,omitempty"`
	FontName    string        `json:"font_name,omitempty"`
	FontSize    int           `json:"font_size" validate:"min=12,max=96"`
	Color       string        `json:"color"`
	Scale       float64       `json:"scale" validate:"gt=0,lte=1"`
	MarginRatio float64       `json:"margin_ratio" validate:"gte=0,lt=0.5"`
}

// Settings is the immutable configuration of one batch or single save.
type Settings struct {
	Aspect     Aspect     `json:"aspect"`
	Mode       Mode       `json:"mode" validate:"oneof=fit fill stretch"`
	Crop       CropAnchor `json:"crop" validate:"oneof=center smart"`
	Background Background `json:"background"`
	Watermark  Watermark  `json:"watermark"`
}

const (
	DefaultFontName    = "arial.ttf"
	DefaultFontSize    = 32
	DefaultOpacity     = 80
	DefaultLogoScale   = 0.15
	DefaultMarginRatio = 0.02
	DefaultBgColor     = "#ffffff"
	DefaultTextColor   = "#ffffff"
)

func DefaultSettings() Settings {
	return Settings{
		Aspect: AspectPresets[DefaultAspect],
		Mode:   ModeFit,
		Crop:   CropCenter,
		Background: Background{
			Kind:  BackgroundColor,
			Color: DefaultBgColor,
		},
		Watermark: Watermark{
			Kind:        WatermarkNone,
			Position:    BottomRight,
			Opacity:     DefaultOpacity,
			FontName:    DefaultFontName,
			FontSize:    DefaultFontSize,
			Color:       DefaultTextColor,
			Scale:       DefaultLogoScale,
			MarginRatio: DefaultMarginRatio,
		},
	}
}

var settingsValidator = validator.New()

func (s Settings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if !validRatioPart(s.Aspect.W) || !validRatioPart(s.Aspect.H) || !s.Aspect.inRange() {
		return fmt.Errorf("%w: aspect %s", ErrInvalidArgument, s.Aspect)
	}
	if _, err := ParseColor(s.Background.Color); err != nil {
		return err
	}
	if _, err := ParseColor(s.Watermark.Color); err != nil {
		return err
	}
	return nil
}

func (s *Settings) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type %T for Settings", value)
	}
	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to Settings: %w", err)
	}
	return nil
}

func (s Settings) Value() (driver.Value, error) {
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Settings to JSONB: %w", err)
	}
	return res, nil
}

// ParseColor reads "#rgb", "#rrggbb" (leading # optional) or "r,g,b".
func ParseColor(raw string) (color.NRGBA, error) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return color.NRGBA{}, fmt.Errorf("%w: color %q", ErrInvalidArgument, raw)
		}
		var rgb [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("%w: color %q", ErrInvalidArgument, raw)
			}
			rgb[i] = uint8(v)
		}
		return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
	}

	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: color %q", ErrInvalidArgument, raw)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: color %q", ErrInvalidArgument, raw)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// SettingsForm is raw user input from CLI flags or an HTTP form; zero fields keep defaults.
type SettingsForm struct {
	Aspect     string  `form:"aspect"`
	Mode       string  `form:"mode"`
	Crop       string  `form:"crop"`
	Background string  `form:"background"`
	BgColor    string  `form:"bg_color"`
	Watermark  string  `form:"watermark"`
	Text       string  `form:"text"`
	FontName   string  `form:"font"`
	FontSize   int     `form:"font_size"`
	TextColor  string  `form:"text_color"`
	Position   string  `form:"position"`
	Opacity    int     `form:"opacity"`
	LogoScale  float64 `form:"logo_scale"`
	LogoMargin float64 `form:"logo_margin"`
}

// ToSettings overlays the form on DefaultSettings. A bad aspect is not fatal:
// it is reported as a warning and 1:1 is used instead.
func (f SettingsForm) ToSettings() (Settings, []string, error) {
	s := DefaultSettings()
	var warnings []string

	if f.Aspect != "" {
		a, err := ParseAspect(f.Aspect)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%v; falling back to %s", err, DefaultAspect))
			a = AspectPresets[DefaultAspect]
		}
		s.Aspect = a
	}

	setLower(&s.Mode, f.Mode)
	setLower(&s.Crop, f.Crop)
	setLower(&s.Background.Kind, f.Background)
	setLower(&s.Watermark.Kind, f.Watermark)
	setLower(&s.Watermark.Position, f.Position)

	if f.BgColor != "" {
		s.Background.Color = f.BgColor
	}
	if f.TextColor != "" {
		s.Watermark.Color = f.TextColor
	}
	if f.FontName != "" {
		s.Watermark.FontName = f.FontName
	}
	if f.FontSize != 0 {
		s.Watermark.FontSize = f.FontSize
	}
	if f.Opacity != 0 {
		s.Watermark.Opacity = f.Opacity
	}
	if f.LogoScale != 0 {
		s.Watermark.Scale = f.LogoScale
	}
	if f.LogoMargin != 0 {
		s.Watermark.MarginRatio = f.LogoMargin
	}
	s.Watermark.Text = f.Text

	if err := s.Validate(); err != nil {
		return Settings{}, warnings, err
	}
	return s, warnings, nil
}

func setLower[T ~string](dst *T, raw string) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw != "" {
		*dst = T(raw)
	}
}

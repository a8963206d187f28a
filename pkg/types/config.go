package types

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Validation errors returned by the config Validate methods.
var (
	ErrUnknownBackend     = errors.New("unknown transcription backend")
	ErrInvalidModelSize   = errors.New("invalid model size")
	ErrInvalidDevice      = errors.New("invalid device")
	ErrInvalidComputeType = errors.New("invalid compute type")
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidSubtitle    = errors.New("invalid subtitle format")
	ErrInvalidValue       = errors.New("invalid value")
)

// TranscriptionBackend identifies the speech recognition engine.
type TranscriptionBackend string

const (
	BackendWhisperCpp TranscriptionBackend = "whispercpp"
	BackendOpenAI     TranscriptionBackend = "openai"
)

// Device selects where the speech model runs.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ComputeType selects the numeric precision of the model weights.
type ComputeType string

const (
	ComputeInt8    ComputeType = "int8"
	ComputeFloat16 ComputeType = "float16"
	ComputeFloat32 ComputeType = "float32"
)

// SubtitleFormat names a subtitle file format written next to transcripts.
type SubtitleFormat string

const (
	SubtitleSRT SubtitleFormat = "srt"
	SubtitleVTT SubtitleFormat = "vtt"
)

// ModelSizes lists the recognized whisper model sizes. Each may carry an
// ".en" suffix for the English-only variant, except the large models.
var ModelSizes = []string{"tiny", "base", "small", "medium", "large-v1", "large-v2", "large-v3"}

// OpenAIConfig holds settings for OpenAI-compatible transcription APIs.
type OpenAIConfig struct {
	// APIKey authenticates requests. Falls back to OPENAI_API_KEY and the
	// openai-api-key secret.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL points at an OpenAI-compatible server (e.g. Groq). Empty uses OpenAI.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Model is the remote model name (default "whisper-1").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Timeout bounds one transcription request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// TranscriptionConfig holds settings for the transcription stage.
type TranscriptionConfig struct {
	// InputDir is scanned (non-recursively) for audio files.
	InputDir string `json:"input_dir" yaml:"input_dir" mapstructure:"input_dir"`

	// OutputDir receives one <stem>.txt per audio file.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Patterns are glob patterns matched against file names in InputDir.
	Patterns []string `json:"patterns" yaml:"patterns" mapstructure:"patterns"`

	Backend     TranscriptionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
	ModelSize   string               `json:"model_size" yaml:"model_size" mapstructure:"model_size"`
	Device      Device               `json:"device" yaml:"device" mapstructure:"device"`
	ComputeType ComputeType          `json:"compute_type" yaml:"compute_type" mapstructure:"compute_type"`

	// ModelsDir holds downloaded ggml model files.
	ModelsDir string `json:"models_dir" yaml:"models_dir" mapstructure:"models_dir"`

	// Language is a language code; empty or "auto" enables detection.
	Language string `json:"language" yaml:"language" mapstructure:"language"`

	BeamSize int `json:"beam_size" yaml:"beam_size" mapstructure:"beam_size"`

	// VAD enables voice activity filtering before recognition.
	VAD bool `json:"vad" yaml:"vad" mapstructure:"vad"`

	// MinSilence is the shortest pause that splits two speech regions.
	MinSilence time.Duration `json:"min_silence" yaml:"min_silence" mapstructure:"min_silence"`

	// Threads is the number of decoder threads; 0 uses GOMAXPROCS.
	Threads int `json:"threads" yaml:"threads" mapstructure:"threads"`

	// Subtitles lists extra formats written next to each transcript.
	Subtitles []SubtitleFormat `json:"subtitles,omitempty" yaml:"subtitles,omitempty" mapstructure:"subtitles"`

	// SkipExisting leaves audio files whose transcript exists untouched.
	SkipExisting bool `json:"skip_existing" yaml:"skip_existing" mapstructure:"skip_existing"`

	// FFmpegImage is the container image used when ffmpeg is not on PATH.
	FFmpegImage string `json:"ffmpeg_image" yaml:"ffmpeg_image" mapstructure:"ffmpeg_image"`

	OpenAI OpenAIConfig `json:"openai" yaml:"openai" mapstructure:"openai"`
}

// DefaultTranscriptionConfig returns the stage defaults.
func DefaultTranscriptionConfig() TranscriptionConfig {
	return TranscriptionConfig{
		InputDir:    "audio_files",
		OutputDir:   "transcripts_output",
		Patterns:    []string{"*.m4a"},
		Backend:     BackendWhisperCpp,
		ModelSize:   "base",
		Device:      DeviceCPU,
		ComputeType: ComputeInt8,
		ModelsDir:   "models",
		Language:    "auto",
		BeamSize:    5,
		VAD:         true,
		MinSilence:  500 * time.Millisecond,
		FFmpegImage: "linuxserver/ffmpeg:latest",
		OpenAI: OpenAIConfig{
			Model:   "whisper-1",
			Timeout: 10 * time.Minute,
		},
	}
}

// Validate checks enum fields and numeric ranges.
func (c TranscriptionConfig) Validate() error {
	switch c.Backend {
	case BackendWhisperCpp, BackendOpenAI:
	default:
		return fmt.Errorf("%w: %q (want whispercpp or openai)", ErrUnknownBackend, c.Backend)
	}
	if !ValidModelSize(c.ModelSize) {
		return fmt.Errorf("%w: %q", ErrInvalidModelSize, c.ModelSize)
	}
	switch c.Device {
	case DeviceCPU, DeviceCUDA:
	default:
		return fmt.Errorf("%w: %q (want cpu or cuda)", ErrInvalidDevice, c.Device)
	}
	switch c.ComputeType {
	case ComputeInt8, ComputeFloat16, ComputeFloat32:
	default:
		return fmt.Errorf("%w: %q (want int8, float16 or float32)", ErrInvalidComputeType, c.ComputeType)
	}
	for _, f := range c.Subtitles {
		if f != SubtitleSRT && f != SubtitleVTT {
			return fmt.Errorf("%w: %q (want srt or vtt)", ErrInvalidSubtitle, f)
		}
	}
	if c.BeamSize < 1 {
		return fmt.Errorf("%w: beam size %d must be at least 1", ErrInvalidValue, c.BeamSize)
	}
	if c.MinSilence < 0 {
		return fmt.Errorf("%w: min silence %v is negative", ErrInvalidValue, c.MinSilence)
	}
	if len(c.Patterns) == 0 {
		return fmt.Errorf("%w: no input patterns", ErrInvalidValue)
	}
	return nil
}

// ValidModelSize reports whether size names a known whisper model.
func ValidModelSize(size string) bool {
	base, english := strings.CutSuffix(size, ".en")
	if !slices.Contains(ModelSizes, base) {
		return false
	}
	return !english || !strings.HasPrefix(base, "large")
}

// PageSize names a PDF paper size.
type PageSize string

const (
	PageLetter PageSize = "letter"
	PageA4     PageSize = "a4"
)

// ConversionConfig holds settings for the text-to-PDF stage.
type ConversionConfig struct {
	// InputDir is scanned for *.txt transcripts.
	InputDir string `json:"input_dir" yaml:"input_dir" mapstructure:"input_dir"`

	// OutputDir receives one <stem>.pdf per transcript.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	PageSize PageSize `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	// FontSize is the body text size in points.
	FontSize float64 `json:"font_size" yaml:"font_size" mapstructure:"font_size"`

	// FontName is the base font family.
	FontName string `json:"font_name" yaml:"font_name" mapstructure:"font_name"`

	// Timeout bounds rendering of one PDF.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	SkipExisting bool `json:"skip_existing" yaml:"skip_existing" mapstructure:"skip_existing"`
}

// DefaultConversionConfig returns the stage defaults.
func DefaultConversionConfig() ConversionConfig {
	return ConversionConfig{
		InputDir:  "transcripts_output",
		OutputDir: "output",
		PageSize:  PageLetter,
		FontSize:  10,
		FontName:  "Helvetica",
		Timeout:   30 * time.Second,
	}
}

// Validate checks the page size and font settings.
func (c ConversionConfig) Validate() error {
	switch c.PageSize {
	case PageLetter, PageA4:
	default:
		return fmt.Errorf("%w: %q (want letter or a4)", ErrInvalidPageSize, c.PageSize)
	}
	if c.FontSize <= 0 {
		return fmt.Errorf("%w: font size %v must be positive", ErrInvalidValue, c.FontSize)
	}
	if strings.TrimSpace(c.FontName) == "" {
		return fmt.Errorf("%w: empty font name", ErrInvalidValue)
	}
	return nil
}

// CatalogConfig holds settings for the transcript catalog.
type CatalogConfig struct {
	// TranscriptsDir is scanned for *.txt transcripts to index.
	TranscriptsDir string `json:"transcripts_dir" yaml:"transcripts_dir" mapstructure:"transcripts_dir"`

	// CatalogDir is the base directory for the catalog (contains index/).
	CatalogDir string `json:"catalog_dir" yaml:"catalog_dir" mapstructure:"catalog_dir"`

	// MaxResults is the default maximum number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// DefaultCatalogConfig returns the stage defaults.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		TranscriptsDir: "transcripts_output",
		CatalogDir:     "catalog",
		MaxResults:     20,
	}
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Transcription TranscriptionConfig `json:"transcription" yaml:"transcription" mapstructure:"transcription"`
	Conversion    ConversionConfig    `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Catalog       CatalogConfig       `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
}

// DefaultPipelineConfig returns defaults for every stage.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Transcription: DefaultTranscriptionConfig(),
		Conversion:    DefaultConversionConfig(),
		Catalog:       DefaultCatalogConfig(),
	}
}

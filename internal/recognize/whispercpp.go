// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recognize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/pdiddy/transcript-engine/internal/audio"
	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/internal/vad"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

// unknownLanguage is reported when there is no speech to detect from.
const unknownLanguage = "unknown"

// session is the subset of whisper.Context used per file.
type session interface {
	SetLanguage(lang string) error
	SetThreads(n uint)
	SetBeamSize(n int)
	Process(samples []float32, begin whisper.EncoderBeginCallback, segment whisper.SegmentCallback, progress whisper.ProgressCallback) error
	NextSegment() (whisper.Segment, error)
	DetectedLanguage() string
}

// sampleDecoder turns an audio file into 16 kHz mono samples.
type sampleDecoder interface {
	Decode(ctx context.Context, path string) ([]float32, error)
}

// WhisperCpp recognizes speech with a whisper.cpp ggml model.
type WhisperCpp struct {
	cfg        types.TranscriptionConfig
	decoder    sampleDecoder
	newSession func() (session, error)
	close      func() error
}

// NewWhisperCpp loads the model at modelPath.
func NewWhisperCpp(modelPath string, cfg types.TranscriptionConfig, dec sampleDecoder) (*WhisperCpp, error) {
	log := logging.L()
	log.Info("loading whisper.cpp model", "path", modelPath)
	logDevice(cfg)

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading whisper model %s: %w", modelPath, err)
	}
	log.Info("whisper.cpp model loaded", "multilingual", model.IsMultilingual())

	return &WhisperCpp{
		cfg:     cfg,
		decoder: dec,
		newSession: func() (session, error) {
			return model.NewContext()
		},
		close: model.Close,
	}, nil
}

// Name returns the backend name.
func (w *WhisperCpp) Name() string { return string(types.BackendWhisperCpp) }

// Close releases the model.
func (w *WhisperCpp) Close() error {
	if w.close == nil {
		return nil
	}
	return w.close()
}

// Recognize decodes audioPath, optionally removes silence, and runs the
// model. Segment times refer to the original audio even when silence was
// removed.
func (w *WhisperCpp) Recognize(ctx context.Context, audioPath string) (*types.Transcript, error) {
	log := logging.L().With("file", audioPath)

	samples, err := w.decoder.Decode(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("decoding audio: %w", err)
	}
	t := &types.Transcript{Duration: secondsToDuration(audio.Duration(len(samples)))}
	log.Debug("audio decoded", "samples", len(samples), "duration", t.Duration)

	input := samples
	var tmap *vad.TimestampMap
	if w.cfg.VAD {
		params := vad.DefaultParams()
		params.MinSilence = w.cfg.MinSilence
		spans := vad.Detect(samples, params)
		input, tmap = vad.Collect(samples, spans)
		log.Debug("voice activity filter", "regions", len(spans), "kept", secondsToDuration(audio.Duration(len(input))))
	}

	lang := fixedLanguage(w.cfg)
	if len(input) == 0 {
		t.Language = unknownLanguage
		if lang != "" {
			t.Language = lang
			t.LanguageProbability = types.Probability(1)
		}
		log.Info("no speech detected")
		return t, nil
	}

	s, err := w.newSession()
	if err != nil {
		return nil, fmt.Errorf("creating whisper context: %w", err)
	}
	if lang != "" {
		if err := s.SetLanguage(lang); err != nil {
			return nil, fmt.Errorf("setting language %q: %w", lang, err)
		}
	} else if err := s.SetLanguage("auto"); err != nil {
		log.Debug("model does not support language detection", "error", err)
	}
	s.SetThreads(threads(w.cfg))
	s.SetBeamSize(w.cfg.BeamSize)

	begin := func() bool { return ctx.Err() == nil }
	progress := func(pct int) { log.Debug("recognizing", "progress", pct) }
	if err := s.Process(input, begin, nil, progress); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper process: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		seg, err := s.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading segment: %w", err)
		}
		t.Segments = append(t.Segments, types.Segment{
			Start: tmap.Original(seg.Start),
			End:   tmap.OriginalEnd(seg.End),
			Text:  seg.Text,
		})
	}

	if lang != "" {
		t.Language = lang
		t.LanguageProbability = types.Probability(1)
	} else {
		t.Language = s.DetectedLanguage()
		if t.Language == "" {
			t.Language = unknownLanguage
		}
	}

	log.Debug("recognition complete", "segments", len(t.Segments), "language", t.Language)
	return t, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transcribe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

// DefaultDebounce is how long a file must stay unchanged before it is
// transcribed. Recorders and copy tools write in bursts.
const DefaultDebounce = 2 * time.Second

// Watch transcribes audio files created or rewritten in cfg.InputDir until
// ctx is done. Each file waits for debounce of quiet before it is picked
// up, and a file whose content has not changed since it was last
// transcribed is not picked up again. The returned result covers only
// files handled while watching.
func Watch(ctx context.Context, rec Recognizer, cfg types.TranscriptionConfig, w io.Writer, debounce time.Duration) (BatchResult, error) {
	var result BatchResult
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return result, fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.InputDir); err != nil {
		return result, fmt.Errorf("watching %s: %w", cfg.InputDir, err)
	}
	log := logging.L().With("dir", cfg.InputDir)
	log.Info("watching for new audio", "patterns", cfg.Patterns)
	fmt.Fprintf(w, "Watching %s/ for new %s files (Ctrl-C to stop)\n", cfg.InputDir, describePatterns(cfg.Patterns))

	var (
		ready  = make(chan firing)
		timers = make(map[string]*pending)
		// seen holds the modification time of each file when it was last
		// transcribed.
		seen = make(map[string]time.Time)
		gen  int
	)
	defer func() {
		for _, p := range timers {
			p.timer.Stop()
		}
	}()

	// schedule (re)arms the timer for path. A timer replaced before its
	// send is received is recognized by its stale generation.
	schedule := func(path string, delay time.Duration) {
		if p, ok := timers[path]; ok {
			p.timer.Stop()
		}
		gen++
		f := firing{path: path, gen: gen}
		timers[path] = &pending{gen: gen, timer: time.AfterFunc(delay, func() {
			select {
			case ready <- f:
			case <-ctx.Done():
			}
		})}
	}

	for {
		select {
		case <-ctx.Done():
			return result, nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return result, nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !matchesAny(ev.Name, cfg.Patterns) {
				continue
			}
			schedule(ev.Name, debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return result, nil
			}
			log.Warn("watch error", "error", err)

		case f := <-ready:
			p, ok := timers[f.path]
			if !ok || p.gen != f.gen {
				continue
			}
			info, err := os.Stat(f.path)
			if err != nil {
				delete(timers, f.path)
				log.Debug("watched file vanished", "file", f.path, "err", err)
				continue
			}
			if age := time.Since(info.ModTime()); age < debounce {
				schedule(f.path, min(debounce-age, debounce))
				continue
			}
			delete(timers, f.path)
			if last, ok := seen[f.path]; ok && info.ModTime().Equal(last) {
				continue
			}

			fmt.Fprintf(w, "[%d] Processing: %s\n", result.Total()+1, filepath.Base(f.path))
			res := TranscribeFile(ctx, rec, f.path, cfg, now())
			report(w, f.path, res)
			result.add(res.Status)
			seen[f.path] = info.ModTime()
		}
	}
}

type pending struct {
	timer *time.Timer
	gen   int
}

type firing struct {
	path string
	gen  int
}

func matchesAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

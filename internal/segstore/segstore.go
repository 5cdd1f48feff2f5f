// Package segstore is the file-system adapter of the transcript pipeline.
// It lists and decodes the per-track recognizer output and reads and writes
// the two per-session artifacts:
//
//	<transcripts>/session<N>.json   ordered, speaker-attributed segments
//	<transcripts>/session<N>.txt    speaker-grouped plain text
//
// The presence of both artifacts is what marks a session as assembled.
package segstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/MrWong99/rpgnotes/internal/atomicfile"
	"github.com/MrWong99/rpgnotes/pkg/types"
)

// Store reads tracks from one directory and keeps artifacts in another.
type Store struct {
	trackDir string
	outDir   string
	ext      string
}

// Option is a functional option for [New].
type Option func(*Store)

// WithTrackExt sets the extension of track files. Default: ".json".
func WithTrackExt(ext string) Option {
	return func(s *Store) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ext != "" {
			s.ext = ext
		}
	}
}

// New creates a Store. trackDir holds one recognizer output file per audio
// track; outDir receives the session artifacts.
func New(trackDir, outDir string, opts ...Option) *Store {
	s := &Store{trackDir: trackDir, outDir: outDir, ext: ".json"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TrackDir returns the directory tracks are read from.
func (s *Store) TrackDir() string { return s.trackDir }

// OutDir returns the directory artifacts are written to.
func (s *Store) OutDir() string { return s.outDir }

// Tracks lists the track files in lexicographic filename order. A missing
// track directory yields an empty list.
func (s *Store) Tracks(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.trackDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("segstore: list %q: %w", s.trackDir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), s.ext) {
			paths = append(paths, filepath.Join(s.trackDir, e.Name()))
		}
	}
	// os.ReadDir already sorts, but the ordering is part of the contract.
	slices.Sort(paths)
	return paths, nil
}

// ReadTrack decodes one track file: a JSON array of segments in recognizer
// order.
func (s *Store) ReadTrack(path string) ([]types.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("segstore: read %q: %w", path, err)
	}
	var segs []types.Segment
	if err := json.Unmarshal(data, &segs); err != nil {
		return nil, fmt.Errorf("segstore: decode %q: %w", path, err)
	}
	return segs, nil
}

// Paths returns the structured and text artifact paths for a session.
func (s *Store) Paths(session int) (jsonPath, textPath string) {
	base := filepath.Join(s.outDir, "session"+strconv.Itoa(session))
	return base + ".json", base + ".txt"
}

// Exists reports whether both artifacts of session are present.
func (s *Store) Exists(session int) (bool, error) {
	jsonPath, textPath := s.Paths(session)
	for _, p := range []string{jsonPath, textPath} {
		ok, err := atomicfile.Exists(p)
		if err != nil {
			return false, fmt.Errorf("segstore: stat %q: %w", p, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Write persists both artifacts, structured record first. Each file is
// replaced atomically, so a crash leaves either no artifact, only the
// structured one, or both; only the last state counts as assembled.
func (s *Store) Write(t *types.SessionTranscript, text string) error {
	data, err := json.MarshalIndent(t.Segments, "", "  ")
	if err != nil {
		return fmt.Errorf("segstore: encode session %d: %w", t.SessionNumber, err)
	}
	jsonPath, textPath := s.Paths(t.SessionNumber)
	if err := atomicfile.WriteFile(jsonPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("segstore: %w", err)
	}
	if err := atomicfile.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("segstore: %w", err)
	}
	return nil
}

// ReadCombined loads a previously written structured artifact.
func (s *Store) ReadCombined(session int) (*types.SessionTranscript, error) {
	jsonPath, _ := s.Paths(session)
	segs, err := s.ReadTrack(jsonPath)
	if err != nil {
		return nil, err
	}
	return &types.SessionTranscript{SessionNumber: session, Segments: segs}, nil
}

// ReadText loads a previously written text artifact.
func (s *Store) ReadText(session int) (string, error) {
	_, textPath := s.Paths(session)
	data, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("segstore: read %q: %w", textPath, err)
	}
	return string(data), nil
}

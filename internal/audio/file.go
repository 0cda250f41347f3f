package audio

import (
	"context"
	"fmt"
	"path/filepath"
)

// FileSource decodes an audio file and delivers it as a live source would
type FileSource struct {
	Path string
	Chunking
}

// Run implements Source
func (s *FileSource) Run(ctx context.Context, h Handler) error {
	h.StateChanged(StateConnecting, nil)

	reader, _, err := OpenAudioFile(s.Path)
	if err != nil {
		h.StateChanged(StateError, err)
		return err
	}
	defer reader.Close()

	if err := deliver(ctx, reader.Streamer(s.SampleRate), s.Chunking, h); err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	return nil
}

// Describe implements Source
func (s *FileSource) Describe() string {
	pace := "as fast as possible"
	if s.Realtime {
		pace = "real time"
	}
	return fmt.Sprintf("file %s (%s)", filepath.Base(s.Path), pace)
}

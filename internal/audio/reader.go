// Package audio provides the audio sources that feed the beat detector:
// decoded audio files and a synthetic click track, both delivered in
// variable-length mono chunks the way a capture callback would.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnsupportedFormat is returned for files that are not wav, flac or mp3
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// resampleQuality is the beep resampler quality (1 to 6)
const resampleQuality = 4

// Reader wraps a beep decoder for audio file reading
type Reader struct {
	file   *os.File
	stream beep.StreamSeekCloser
	format beep.Format
}

// Metadata contains audio file metadata
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	Format     string // wav, flac or mp3
	BitDepth   int
}

// OpenAudioFile opens an audio file for reading. The decoder is chosen from
// the file extension.
func OpenAudioFile(filename string) (*Reader, *Metadata, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "wav", "flac", "mp3":
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext {
	case "wav":
		stream, format, err = wav.Decode(f)
	case "flac":
		stream, format, err = flac.Decode(f)
	case "mp3":
		stream, format, err = mp3.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	metadata := &Metadata{
		Duration:   format.SampleRate.D(stream.Len()).Seconds(),
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
		Format:     ext,
		BitDepth:   format.Precision * 8,
	}

	return &Reader{file: f, stream: stream, format: format}, metadata, nil
}

// Format returns the decoded stream format
func (r *Reader) Format() beep.Format {
	return r.format
}

// Streamer returns the decoded stream resampled to sampleRate
func (r *Reader) Streamer(sampleRate int) beep.Streamer {
	target := beep.SampleRate(sampleRate)
	if r.format.SampleRate == target {
		return r.stream
	}
	return beep.Resample(resampleQuality, r.format.SampleRate, target, r.stream)
}

// Close releases the decoder and the underlying file
func (r *Reader) Close() error {
	err := r.stream.Close()
	if cerr := r.file.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}

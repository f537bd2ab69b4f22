package rag

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// maxInlineAudioBytes keeps each recognize request under the 10 MB inline content limit,
// about 4.9 minutes of 16 kHz mono LINEAR16.
const maxInlineAudioBytes = 9 << 20

const wavReadSamples = 32 * 1024

// splitWAV re-encodes the PCM WAV at path into numbered files under dir, each holding at
// most maxBytes of sample data. Segments end on frame boundaries.
func splitWAV(path, dir string, maxBytes int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("not a PCM wav file")
	}
	format := dec.Format()
	bitDepth := int(dec.BitDepth)
	frameBytes := bitDepth / 8 * format.NumChannels
	if frameBytes <= 0 {
		return nil, fmt.Errorf("unsupported wav format: %d bit, %d channels", bitDepth, format.NumChannels)
	}
	perSegment := maxBytes / frameBytes * format.NumChannels
	if perSegment <= 0 {
		return nil, fmt.Errorf("segment size %d is smaller than one frame", maxBytes)
	}

	var (
		paths   []string
		out     *os.File
		enc     *wav.Encoder
		written int
	)
	finish := func() error {
		if enc == nil {
			return nil
		}
		encErr := enc.Close()
		closeErr := out.Close()
		enc, out, written = nil, nil, 0
		return errors.Join(encErr, closeErr)
	}
	defer func() {
		if out != nil {
			out.Close()
		}
	}()

	data := make([]int, min(perSegment, wavReadSamples))
	buf := &audio.IntBuffer{Format: format, SourceBitDepth: bitDepth}
	for {
		buf.Data = data[:min(len(data), perSegment-written)]
		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode wav: %w", err)
		}
		if n == 0 {
			break
		}

		if enc == nil {
			name := filepath.Join(dir, fmt.Sprintf("segment-%03d.wav", len(paths)))
			if out, err = os.Create(name); err != nil {
				return nil, fmt.Errorf("create segment: %w", err)
			}
			enc = wav.NewEncoder(out, format.SampleRate, bitDepth, format.NumChannels, int(dec.WavAudioFormat))
			paths = append(paths, name)
		}
		chunk := &audio.IntBuffer{Format: format, SourceBitDepth: bitDepth, Data: buf.Data[:n]}
		if err := enc.Write(chunk); err != nil {
			return nil, fmt.Errorf("encode segment: %w", err)
		}
		written += n
		if written >= perSegment {
			if err := finish(); err != nil {
				return nil, fmt.Errorf("close segment: %w", err)
			}
		}
	}
	if err := finish(); err != nil {
		return nil, fmt.Errorf("close segment: %w", err)
	}
	return paths, nil
}

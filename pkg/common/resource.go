package common

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"layeh.com/gopus"

	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

var ErrNoReadableOutput = errors.New("pipeline has no readable output")

// OpusResourceFactory wraps PCM streams into Opus-encoding resources.
type OpusResourceFactory struct {
	cfg pipeline.OpusConfig
}

// NewOpusResourceFactory creates a new OpusResourceFactory
func NewOpusResourceFactory(cfg pipeline.OpusConfig) *OpusResourceFactory {
	return &OpusResourceFactory{cfg: cfg}
}

func (f *OpusResourceFactory) NewResource(r io.Reader) (pipeline.Resource, error) {
	if r == nil {
		return nil, ErrNoReadableOutput
	}

	encoder, err := gopus.NewEncoder(f.cfg.SampleRate, f.cfg.Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	encoder.SetBitrate(f.cfg.Bitrate)

	samples := f.cfg.FrameSize * f.cfg.Channels
	return &OpusResource{
		reader:    bufio.NewReaderSize(r, samples*2*4),
		encoder:   encoder,
		frameSize: f.cfg.FrameSize,
		pcm:       make([]byte, samples*2),
		samples:   make([]int16, samples),
	}, nil
}

// OpusResource reads 20 ms PCM frames and encodes each to Opus.
type OpusResource struct {
	reader    io.Reader
	encoder   *gopus.Encoder
	frameSize int
	pcm       []byte
	samples   []int16
}

// ReadFrame returns the next Opus frame. A partial trailing frame counts as
// the end of the stream.
func (r *OpusResource) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(r.reader, r.pcm); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	for i := range r.samples {
		r.samples[i] = int16(binary.LittleEndian.Uint16(r.pcm[i*2:]))
	}

	frame, err := r.encoder.Encode(r.samples, r.frameSize, len(r.pcm))
	if err != nil {
		return nil, fmt.Errorf("opus encoding error: %w", err)
	}
	return frame, nil
}

package common

import (
	"errors"
	"io"
	"sync"

	"github.com/latoulicious/lofi-bot/pkg/logging"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

// FramePlayer pumps encoded frames from a resource into the attached voice
// sink. Sends block, so the sink paces playback.
type FramePlayer struct {
	logger logging.Logger
	events chan pipeline.PlayerEvent

	mu       sync.Mutex
	sink     chan<- []byte
	speaking func(bool) error
	stop     chan struct{}
}

// NewFramePlayer creates a new FramePlayer
func NewFramePlayer(logger logging.Logger) *FramePlayer {
	return &FramePlayer{
		logger: logger.With(logging.String("component", "player")),
		events: make(chan pipeline.PlayerEvent, 32),
	}
}

// Attach sets where frames go. speaking may be nil.
func (p *FramePlayer) Attach(sink chan<- []byte, speaking func(bool) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
	p.speaking = speaking
}

func (p *FramePlayer) Events() <-chan pipeline.PlayerEvent {
	return p.events
}

func (p *FramePlayer) Play(res pipeline.Resource) {
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
	}
	stop := make(chan struct{})
	p.stop = stop
	sink, speaking := p.sink, p.speaking
	p.mu.Unlock()

	go p.pump(res, stop, sink, speaking)
}

func (p *FramePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *FramePlayer) pump(res pipeline.Resource, stop chan struct{}, sink chan<- []byte, speaking func(bool) error) {
	p.emit(pipeline.PlayerEvent{Status: pipeline.PlayerPlaying, Resource: res})
	p.setSpeaking(speaking, true)
	defer p.release(stop, speaking)

	frames := 0
	for {
		frame, err := res.ReadFrame()

		select {
		case <-stop:
			p.emit(pipeline.PlayerEvent{Status: pipeline.PlayerIdle, Resource: res})
			return
		default:
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				p.logger.Debug("Resource ended", logging.Int("frames", frames))
				p.emit(pipeline.PlayerEvent{Status: pipeline.PlayerIdle, Resource: res})
			} else {
				p.emit(pipeline.PlayerEvent{Status: pipeline.PlayerError, Resource: res, Err: err})
			}
			return
		}

		select {
		case sink <- frame:
			frames++
		case <-stop:
			p.emit(pipeline.PlayerEvent{Status: pipeline.PlayerIdle, Resource: res})
			return
		}
	}
}

// release clears the speaking flag unless a newer pump already took over.
func (p *FramePlayer) release(stop chan struct{}, speaking func(bool) error) {
	p.mu.Lock()
	current := p.stop == stop || p.stop == nil
	p.mu.Unlock()
	if current {
		p.setSpeaking(speaking, false)
	}
}

func (p *FramePlayer) setSpeaking(speaking func(bool) error, on bool) {
	if speaking == nil {
		return
	}
	if err := speaking(on); err != nil {
		p.logger.Debug("Failed to set speaking state", logging.Bool("speaking", on), logging.Error(err))
	}
}

func (p *FramePlayer) emit(ev pipeline.PlayerEvent) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("Player event dropped", logging.String("status", ev.Status.String()))
	}
}

// FramePlayerFactory creates FramePlayers.
type FramePlayerFactory struct {
	logger logging.Logger
}

func NewFramePlayerFactory(logger logging.Logger) *FramePlayerFactory {
	return &FramePlayerFactory{logger: logger}
}

func (f *FramePlayerFactory) NewPlayer() pipeline.Player {
	return NewFramePlayer(f.logger)
}

package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

type fakeConn struct {
	events    chan ConnectionEvent
	destroyed atomic.Int32
	onDestroy func()

	mu         sync.Mutex
	subscribed Player
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan ConnectionEvent, 16)}
}

func (c *fakeConn) Events() <-chan ConnectionEvent { return c.events }

func (c *fakeConn) Subscribe(p Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = p
}

func (c *fakeConn) Destroy() {
	c.destroyed.Add(1)
	if c.onDestroy != nil {
		c.onDestroy()
	}
	select {
	case c.events <- ConnectionEvent{Status: ConnectionDestroyed}:
	default:
	}
}

func (c *fakeConn) emit(status ConnectionStatus) {
	c.events <- ConnectionEvent{Status: status}
}

type fakeGateway struct {
	mu    sync.Mutex
	conns map[string]*fakeConn
	err   error
	block bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{conns: make(map[string]*fakeConn)}
}

func (g *fakeGateway) Join(ctx context.Context, guildID, channelID string) (Connection, error) {
	g.mu.Lock()
	block, err := g.block, g.err
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	conn := newFakeConn()
	g.mu.Lock()
	g.conns[guildID] = conn
	g.mu.Unlock()
	return conn, nil
}

func (g *fakeGateway) conn(guildID string) *fakeConn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conns[guildID]
}

type fakeResource struct {
	id int
}

func (r *fakeResource) ReadFrame() ([]byte, error) { return nil, io.EOF }

type fakePlayer struct {
	events chan PlayerEvent

	mu      sync.Mutex
	current Resource
	played  []Resource
	stops   int
}

func (p *fakePlayer) Play(res Resource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = res
	p.played = append(p.played, res)
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	p.stops++
}

func (p *fakePlayer) Events() <-chan PlayerEvent { return p.events }

func (p *fakePlayer) currentResource() Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakePlayer) emitFor(res Resource, status PlayerStatus) {
	p.events <- PlayerEvent{Status: status, Resource: res}
}

func (p *fakePlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

type fakePlayers struct {
	mu      sync.Mutex
	players []*fakePlayer
}

func (f *fakePlayers) NewPlayer() Player {
	p := &fakePlayer{events: make(chan PlayerEvent, 16)}
	f.mu.Lock()
	f.players = append(f.players, p)
	f.mu.Unlock()
	return p
}

func (f *fakePlayers) last() *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[len(f.players)-1]
}

type fakeResources struct {
	mu    sync.Mutex
	next  int
	failN int
}

func (f *fakeResources) NewResource(r io.Reader) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return nil, errors.New("no readable output")
	}
	f.next++
	return &fakeResource{id: f.next}, nil
}

type fakeProcess struct {
	url    string
	killed atomic.Bool
}

func (p *fakeProcess) Stdout() io.Reader { return strings.NewReader("") }

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	return nil
}

type fakePipelines struct {
	mu    sync.Mutex
	procs []*fakeProcess
	urls  []string
	fail  bool
	// block makes CreatePipeline wait for its context, like a resolve
	// stuck on a slow remote.
	block bool
}

func (f *fakePipelines) CreatePipeline(ctx context.Context, sourceURL string) (Process, error) {
	f.mu.Lock()
	f.urls = append(f.urls, sourceURL)
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("spawn failed")
	}
	proc := &fakeProcess{url: sourceURL}
	f.procs = append(f.procs, proc)
	return proc, nil
}

func (f *fakePipelines) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakePipelines) setBlock(block bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = block
}

func (f *fakePipelines) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func (f *fakePipelines) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.urls) == 0 {
		return ""
	}
	return f.urls[len(f.urls)-1]
}

func (f *fakePipelines) processes() []*fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeProcess(nil), f.procs...)
}

func (f *fakePipelines) liveProcesses() int {
	live := 0
	for _, p := range f.processes() {
		if !p.killed.Load() {
			live++
		}
	}
	return live
}

type fakeRoster struct {
	humans atomic.Int32
}

func (r *fakeRoster) HumansInChannel(guildID, channelID string) int {
	return int(r.humans.Load())
}

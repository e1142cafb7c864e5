// Package blur computes softened background renditions of artwork off the
// caller's goroutine. Rapid triggers for a target (resize storms, track
// changes) are coalesced, and a per-target generation counter discards stale
// results: an in-flight computation cannot be preempted, but only the newest
// generation is allowed to publish.
package blur

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"aria/internal/events"
	"aria/internal/logging"
	"aria/internal/taskqueue"
)

// Job describes one blur request for a target surface.
type Job struct {
	Source *image.RGBA
	// SourceHash identifies the source content for result caching.
	SourceHash string
	// Width and Height are the target surface dimensions. Zero means use the
	// source dimensions.
	Width  int
	Height int
}

// Result is the latest accepted rendition for a target.
type Result struct {
	Image      *image.RGBA
	Generation uint64
}

type resultKey struct {
	hash   string
	radius int
	width  int
	height int
}

type targetState struct {
	generation uint64
	pending    *Job
	timer      *time.Timer
}

// Pipeline schedules blur jobs on the ambient band of the task queue.
type Pipeline struct {
	queue  *taskqueue.Queue
	bus    *events.Bus
	logger *slog.Logger
	radius int
	delay  time.Duration

	mu         sync.Mutex
	closed     bool
	targets    map[string]*targetState
	latest     map[string]Result
	cache      map[resultKey]*image.RGBA
	cacheOrder []resultKey

	computed  uint64
	cacheHits uint64
	discarded uint64
}

// New constructs a pipeline. delay is the coalescing window applied before a
// job is scheduled; radius is the blur strength in pixels.
func New(queue *taskqueue.Queue, bus *events.Bus, radius int, delay time.Duration, logger *slog.Logger) *Pipeline {
	if radius < 0 {
		radius = 0
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		queue:   queue,
		bus:     bus,
		logger:  logging.NewComponentLogger(logger, "blur"),
		radius:  radius,
		delay:   delay,
		targets: make(map[string]*targetState),
		latest:  make(map[string]Result),
		cache:   make(map[resultKey]*image.RGBA),
	}
}

// Submit registers a new blur trigger for target. The job supersedes any
// still-queued job for the same target; an already-running job finishes but
// its result is discarded when this generation outranks it. Returns the
// generation assigned to the job.
func (p *Pipeline) Submit(target string, job Job) uint64 {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	state, ok := p.targets[target]
	if !ok {
		state = &targetState{}
		p.targets[target] = state
	}
	state.generation++
	generation := state.generation
	state.pending = &job

	if state.timer != nil {
		state.timer.Stop()
	}
	state.timer = time.AfterFunc(p.delay, func() {
		p.dispatch(target)
	})
	p.mu.Unlock()
	return generation
}

// Latest returns the newest accepted rendition for target.
func (p *Pipeline) Latest(target string) (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	result, ok := p.latest[target]
	return result, ok
}

// Close stops pending coalescing timers. In-flight computations finish and
// are discarded.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, state := range p.targets {
		if state.timer != nil {
			state.timer.Stop()
		}
		state.pending = nil
	}
}

// Stats reports pipeline counters.
type Stats struct {
	Computed      uint64
	CacheHits     uint64
	Discarded     uint64
	CachedResults int
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Computed:      p.computed,
		CacheHits:     p.cacheHits,
		Discarded:     p.discarded,
		CachedResults: len(p.cache),
	}
}

// dispatch fires after the coalescing window: only the newest pending job for
// the target is still present, older ones were superseded in place.
func (p *Pipeline) dispatch(target string) {
	p.mu.Lock()
	state, ok := p.targets[target]
	if !ok || state.pending == nil || p.closed {
		p.mu.Unlock()
		return
	}
	job := *state.pending
	state.pending = nil
	generation := state.generation

	width, height := job.Width, job.Height
	if width <= 0 || height <= 0 {
		bounds := job.Source.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	}
	key := resultKey{hash: job.SourceHash, radius: p.radius, width: width, height: height}
	if cached, ok := p.cache[key]; ok {
		p.cacheHits++
		p.acceptLocked(target, generation, cached)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	err := p.queue.Submit(context.Background(), taskqueue.PriorityAmbient, taskqueue.Task{
		Label: fmt.Sprintf("blur %s", target),
		Run: func(ctx context.Context) error {
			p.compute(target, generation, job, key)
			return nil
		},
	})
	if err != nil {
		p.logger.Warn("failed to schedule blur job",
			logging.Error(err),
			logging.String("target", target),
			logging.Uint64(logging.FieldGeneration, generation),
		)
	}
}

func (p *Pipeline) compute(target string, generation uint64, job Job, key resultKey) {
	scaled := scale(job.Source, key.width, key.height)
	blurred := BoxBlur(scaled, p.radius)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.computed++
	p.storeResultLocked(key, blurred)

	state := p.targets[target]
	if state == nil || state.generation != generation {
		p.discarded++
		return
	}
	p.acceptLocked(target, generation, blurred)
}

// maxCachedResults bounds the result cache; renditions are full decoded
// images, so the map cannot be allowed to grow with every hash and size
// ever seen.
const maxCachedResults = 32

func (p *Pipeline) storeResultLocked(key resultKey, img *image.RGBA) {
	if _, ok := p.cache[key]; ok {
		p.cache[key] = img
		return
	}
	for len(p.cacheOrder) >= maxCachedResults {
		oldest := p.cacheOrder[0]
		p.cacheOrder = p.cacheOrder[1:]
		delete(p.cache, oldest)
	}
	p.cache[key] = img
	p.cacheOrder = append(p.cacheOrder, key)
}

func (p *Pipeline) acceptLocked(target string, generation uint64, img *image.RGBA) {
	p.latest[target] = Result{Image: img, Generation: generation}
	p.bus.BlurReady(target, generation)
}

// scale resizes src to the target dimensions with an approximating filter.
// The result feeds a blur, so filter quality matters less than speed.
func scale(src *image.RGBA, width, height int) *image.RGBA {
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return src
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), src, bounds, draw.Src, nil)
	return out
}

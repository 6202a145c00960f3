// Package pipeline runs frames from every camera through classification and goal detection. Each
// camera gets its own worker holding at most one waiting frame; configuration and lookup table
// changes are swapped in between frames.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"go.viam.com/fieldvision/config"
	"go.viam.com/fieldvision/logging"
	"go.viam.com/fieldvision/utils"
	"go.viam.com/fieldvision/vision/lut"
	"go.viam.com/fieldvision/vision/objectdetection"
	"go.viam.com/fieldvision/vision/segmentation"
)

// ErrClosed is returned for frames submitted after Close.
var ErrClosed = errors.New("pipeline is closed")

// Frame is one camera image with the robot pose at capture.
type Frame = segmentation.Frame

// FrameResult is the outcome of one frame. Err is set when the frame failed; the other fields
// are then empty.
type FrameResult struct {
	Frame           Frame
	ClassifiedImage *segmentation.ClassifiedImage
	Goals           []*objectdetection.Goal
	// Latency is the processing time of the frame.
	Latency time.Duration
	// Age is the time from capture to the end of processing, when the frame has a timestamp.
	Age time.Duration
	Err error
}

// Options are the optional parts of a Pipeline.
type Options struct {
	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Registry receives the pipeline's loggers so their levels follow the config's log patterns.
	Registry *logging.Registry
	// OnResult is called from a camera's worker for every frame submitted with Submit that was
	// not superseded.
	OnResult func(FrameResult)
}

// Stats counts what happened to submitted frames.
type Stats struct {
	Processed  int64
	Failed     int64
	Superseded int64
}

// stages is everything built from one config. It is never modified once stored.
type stages struct {
	cfg        *config.Config
	classifier *segmentation.Classifier
	detector   *objectdetection.GoalDetector
}

// Pipeline classifies frames and detects goals in them.
type Pipeline struct {
	stages atomic.Pointer[stages]
	table  atomic.Pointer[lut.LookUpTable]

	clock    clock.Clock
	logger   logging.Logger
	registry *logging.Registry
	onResult func(FrameResult)

	processed  atomic.Int64
	failed     atomic.Int64
	superseded atomic.Int64

	mu      sync.Mutex
	closed  bool
	cameras map[int]*cameraWorker
	workers utils.StoppableWorkers
}

// New returns a Pipeline running cfg with table. A nil table must be set with SetTable before
// frames can be processed.
func New(cfg *config.Config, table *lut.LookUpTable, logger logging.Logger, opts Options) (*Pipeline, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Registry == nil {
		opts.Registry = logging.NewRegistry()
	}
	p := &Pipeline{
		clock:    opts.Clock,
		registry: opts.Registry,
		onResult: opts.OnResult,
		cameras:  make(map[int]*cameraWorker),
		workers:  utils.NewStoppableWorkers(),
	}
	p.logger = p.registry.Register(logger.Sublogger("pipeline"))
	if err := p.Reconfigure(cfg); err != nil {
		p.workers.Stop()
		return nil, err
	}
	p.table.Store(table)
	return p, nil
}

// Reconfigure validates cfg and switches to it. Frames already being processed finish with the
// configuration they started with. If cfg is invalid a *config.ConfigurationError is returned and
// the current configuration stays.
func (p *Pipeline) Reconfigure(cfg *config.Config) error {
	if cfg == nil {
		return &config.ConfigurationError{Err: errors.New("no configuration")}
	}
	if err := cfg.Validate(); err != nil {
		p.logger.Warnw("rejecting configuration", "error", err)
		return err
	}
	classifier, err := segmentation.NewClassifier(cfg.Classifier, p.registry.Register(p.logger.Sublogger("classifier")))
	if err != nil {
		return &config.ConfigurationError{Err: err}
	}
	detector, err := objectdetection.NewGoalDetector(cfg.Goals, p.registry.Register(p.logger.Sublogger("goals")))
	if err != nil {
		return &config.ConfigurationError{Err: err}
	}
	if err := cfg.ApplyLogConfig(p.registry, p.logger); err != nil {
		return &config.ConfigurationError{Err: err}
	}
	p.stages.Store(&stages{cfg: cfg, classifier: classifier, detector: detector})
	p.logger.Debug("configuration applied")
	return nil
}

// Config returns the configuration frames are currently started with.
func (p *Pipeline) Config() *config.Config {
	return p.stages.Load().cfg
}

// SetTable switches the lookup table used from the next frame on.
func (p *Pipeline) SetTable(table *lut.LookUpTable) error {
	if table == nil {
		return errors.New("lookup table is required")
	}
	p.table.Store(table)
	return nil
}

// Stats returns the frame counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Superseded: p.superseded.Load(),
	}
}

// ProcessFrame runs frame to completion on the calling goroutine.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame Frame) (*FrameResult, error) {
	return p.process(ctx, frame, nil)
}

// ProcessFrames processes a batch. Frames from one camera run in order, different cameras run in
// parallel. Results are in the order of frames; a failed frame only sets the Err of its own result.
func (p *Pipeline) ProcessFrames(ctx context.Context, frames []Frame) ([]FrameResult, error) {
	results := make([]FrameResult, len(frames))
	byCamera := make(map[int][]int)
	var order []int
	for i, f := range frames {
		if _, ok := byCamera[f.CameraID]; !ok {
			order = append(order, f.CameraID)
		}
		byCamera[f.CameraID] = append(byCamera[f.CameraID], i)
	}

	var g errgroup.Group
	for _, camera := range order {
		indices := byCamera[camera]
		g.Go(func() error {
			for _, i := range indices {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := p.process(ctx, frames[i], nil)
				if err != nil {
					results[i] = FrameResult{Frame: frames[i], Err: err}
					continue
				}
				results[i] = *res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// process runs one frame. detecting, if set, is called once classification is done and before the
// detector starts.
func (p *Pipeline) process(ctx context.Context, frame Frame, detecting func()) (res *FrameResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic processing frame from camera %d: %v", frame.CameraID, r)
		}
	}()

	st := p.stages.Load()
	start := p.clock.Now()
	ci, err := st.classifier.Classify(ctx, frame, p.table.Load())
	if err != nil {
		return nil, err
	}
	if detecting != nil {
		detecting()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	goals, err := st.detector.Detect(ctx, ci)
	if err != nil {
		return nil, err
	}

	end := p.clock.Now()
	res = &FrameResult{
		Frame:           frame,
		ClassifiedImage: ci,
		Goals:           goals,
		Latency:         end.Sub(start),
	}
	if !frame.Timestamp.IsZero() {
		res.Age = end.Sub(frame.Timestamp)
	}
	return res, nil
}

// Submit queues frame on its camera's worker. A frame still waiting for that camera is dropped,
// and one being classified is cancelled. Results go to Options.OnResult.
func (p *Pipeline) Submit(frame Frame) error {
	cw, err := p.worker(frame.CameraID)
	if err != nil {
		return err
	}
	cw.offer(frame)
	return nil
}

func (p *Pipeline) worker(cameraID int) (*cameraWorker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if cw, ok := p.cameras[cameraID]; ok {
		return cw, nil
	}
	cw := &cameraWorker{
		p:      p,
		logger: p.registry.Register(p.logger.Sublogger(fmt.Sprintf("cam%d", cameraID))),
		wake:   make(chan struct{}, 1),
	}
	p.cameras[cameraID] = cw
	p.workers.AddWorkers(cw.run)
	return cw, nil
}

// Close stops every camera worker. Frames waiting are dropped and frames in progress are
// cancelled.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.workers.Stop()
	return nil
}

// cameraWorker processes one camera's frames, one at a time.
type cameraWorker struct {
	p      *Pipeline
	logger logging.Logger
	wake   chan struct{}

	mu      sync.Mutex
	pending *Frame
	// cancel aborts the frame in progress until it reaches the detector.
	cancel context.CancelFunc
}

func (cw *cameraWorker) offer(frame Frame) {
	cw.mu.Lock()
	if cw.pending != nil {
		cw.p.superseded.Inc()
		cw.logger.Debugw("dropping queued frame", "timestamp", cw.pending.Timestamp)
	}
	cw.pending = &frame
	if cw.cancel != nil {
		cw.logger.Debug("cancelling frame in progress")
		cw.cancel()
		cw.cancel = nil
	}
	cw.mu.Unlock()

	select {
	case cw.wake <- struct{}{}:
	default:
	}
}

// take removes the waiting frame, if any, and gives it a context that a newer frame can cancel.
func (cw *cameraWorker) take(ctx context.Context) (Frame, context.Context, context.CancelFunc, bool) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.pending == nil {
		return Frame{}, nil, nil, false
	}
	frame := *cw.pending
	cw.pending = nil
	frameCtx, cancel := context.WithCancel(ctx)
	cw.cancel = cancel
	return frame, frameCtx, cancel, true
}

// detecting stops newer frames from cancelling the current one.
func (cw *cameraWorker) detecting() {
	cw.mu.Lock()
	cw.cancel = nil
	cw.mu.Unlock()
}

func (cw *cameraWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.wake:
		}
		for {
			frame, frameCtx, cancel, ok := cw.take(ctx)
			if !ok {
				break
			}
			cw.handle(ctx, frameCtx, frame)
			cancel()
		}
	}
}

func (cw *cameraWorker) handle(ctx, frameCtx context.Context, frame Frame) {
	logger := cw.logger.WithFields("timestamp", frame.Timestamp)
	res, err := cw.p.process(frameCtx, frame, cw.detecting)
	switch {
	case err != nil && ctx.Err() != nil:
		return
	case err != nil && frameCtx.Err() != nil:
		cw.p.superseded.Inc()
		logger.Debug("frame superseded")
		return
	case err != nil:
		cw.p.failed.Inc()
		logger.Warnw("frame failed", "error", err)
		res = &FrameResult{Frame: frame, Err: err}
	default:
		cw.p.processed.Inc()
		logger.Debugw("frame processed", "frame", res.ClassifiedImage.FrameID, "goals", len(res.Goals), "latency", res.Latency)
	}
	if cw.p.onResult != nil {
		cw.p.onResult(*res)
	}
}

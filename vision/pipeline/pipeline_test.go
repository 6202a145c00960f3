package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/fieldvision/config"
	"go.viam.com/fieldvision/logging"
	"go.viam.com/fieldvision/rimage/transform"
	"go.viam.com/fieldvision/testutils"
)

func goalFrame(t *testing.T, camera int, ts time.Time) Frame {
	t.Helper()
	scene := testutils.NewGoalScene(t)
	return Frame{CameraID: camera, Image: scene.Image, Sensors: scene.Sensors, Timestamp: ts}
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := New(config.Default(), testutils.NewTable(), logging.NewTestLogger(t), opts)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { test.That(t, p.Close(), test.ShouldBeNil) })
	return p
}

func TestProcessFrame(t *testing.T) {
	mockClock := clock.NewMock()
	captured := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mockClock.Set(captured.Add(50 * time.Millisecond))
	p := newPipeline(t, Options{Clock: mockClock})

	res, err := p.ProcessFrame(context.Background(), goalFrame(t, 0, captured))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Err, test.ShouldBeNil)
	test.That(t, res.Goals, test.ShouldHaveLength, 1)
	test.That(t, res.Goals[0].ClassifiedImage, test.ShouldEqual, res.ClassifiedImage)
	test.That(t, res.Latency, test.ShouldEqual, time.Duration(0))
	test.That(t, res.Age, test.ShouldEqual, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.ProcessFrame(ctx, goalFrame(t, 0, captured))
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestProcessFrameErrors(t *testing.T) {
	p, err := New(config.Default(), nil, logging.NewTestLogger(t), Options{})
	test.That(t, err, test.ShouldBeNil)
	defer p.Close()

	frame := goalFrame(t, 0, time.Time{})
	_, err = p.ProcessFrame(context.Background(), frame)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "lookup table")

	test.That(t, p.SetTable(nil), test.ShouldNotBeNil)
	test.That(t, p.SetTable(testutils.NewTable()), test.ShouldBeNil)
	res, err := p.ProcessFrame(context.Background(), frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Goals, test.ShouldHaveLength, 1)
	test.That(t, res.Age, test.ShouldEqual, time.Duration(0))

	// a broken pose panics inside the classifier; only this frame fails
	broken := frame
	broken.Sensors = &transform.Sensors{}
	_, err = p.ProcessFrame(context.Background(), broken)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "panic")

	_, err = p.ProcessFrame(context.Background(), frame)
	test.That(t, err, test.ShouldBeNil)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Goals.GoalDiameter = 0
	_, err := New(cfg, nil, logging.NewTestLogger(t), Options{})
	var cfgErr *config.ConfigurationError
	test.That(t, errors.As(err, &cfgErr), test.ShouldBeTrue)

	_, err = New(nil, nil, logging.NewTestLogger(t), Options{})
	test.That(t, errors.As(err, &cfgErr), test.ShouldBeTrue)
}

func TestReconfigure(t *testing.T) {
	p := newPipeline(t, Options{})
	original := p.Config()

	bad := config.Default()
	bad.Classifier.VisualHorizonSpacing = 0
	err := p.Reconfigure(bad)
	var cfgErr *config.ConfigurationError
	test.That(t, errors.As(err, &cfgErr), test.ShouldBeTrue)
	test.That(t, p.Config(), test.ShouldEqual, original)

	strict := config.Default()
	strict.Goals.AspectRatioRange = [2]float64{10, 15}
	test.That(t, p.Reconfigure(strict), test.ShouldBeNil)
	test.That(t, p.Config(), test.ShouldEqual, strict)

	// the goal scene post is about five times taller than wide
	res, err := p.ProcessFrame(context.Background(), goalFrame(t, 0, time.Time{}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Goals, test.ShouldBeEmpty)
}

func TestReconfigureLogLevels(t *testing.T) {
	registry := logging.NewRegistry()
	p := newPipeline(t, Options{Registry: registry})
	test.That(t, p.Submit(goalFrame(t, 3, time.Time{})), test.ShouldBeNil)

	cfg := config.Default()
	cfg.Log = []logging.LoggerPatternConfig{{Pattern: "*.cam3", Level: "error"}}
	test.That(t, p.Reconfigure(cfg), test.ShouldBeNil)

	logger, ok := registry.LoggerNamed("pipeline.cam3")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, logger.GetLevel(), test.ShouldEqual, logging.ERROR)
	logger, ok = registry.LoggerNamed("pipeline.classifier")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, logger.GetLevel(), test.ShouldEqual, logging.INFO)
}

func TestProcessFrames(t *testing.T) {
	p := newPipeline(t, Options{})
	broken := goalFrame(t, 1, time.Time{})
	broken.Image = nil
	frames := []Frame{goalFrame(t, 0, time.Time{}), broken, goalFrame(t, 0, time.Time{}), goalFrame(t, 2, time.Time{})}

	results, err := p.ProcessFrames(context.Background(), frames)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, results, test.ShouldHaveLength, len(frames))
	for i, res := range results {
		test.That(t, res.Frame.CameraID, test.ShouldEqual, frames[i].CameraID)
		if i == 1 {
			test.That(t, res.Err, test.ShouldNotBeNil)
			continue
		}
		test.That(t, res.Err, test.ShouldBeNil)
		test.That(t, res.Goals, test.ShouldHaveLength, 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.ProcessFrames(ctx, frames)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestSubmit(t *testing.T) {
	results := make(chan FrameResult)
	release := make(chan struct{})
	p := newPipeline(t, Options{OnResult: func(res FrameResult) {
		results <- res
		<-release
	}})

	first := time.Unix(1, 0)
	test.That(t, p.Submit(goalFrame(t, 0, first)), test.ShouldBeNil)
	res := <-results
	test.That(t, res.Err, test.ShouldBeNil)
	test.That(t, res.Frame.Timestamp, test.ShouldEqual, first)
	test.That(t, res.Goals, test.ShouldHaveLength, 1)

	// the worker is blocked delivering the first result; of the next two frames only the newest
	// is kept
	test.That(t, p.Submit(goalFrame(t, 0, time.Unix(2, 0))), test.ShouldBeNil)
	test.That(t, p.Submit(goalFrame(t, 0, time.Unix(3, 0))), test.ShouldBeNil)
	test.That(t, p.Stats().Superseded, test.ShouldEqual, 1)

	release <- struct{}{}
	res = <-results
	test.That(t, res.Frame.Timestamp, test.ShouldEqual, time.Unix(3, 0))
	release <- struct{}{}

	// another camera has its own worker
	broken := goalFrame(t, 1, time.Unix(4, 0))
	broken.Sensors = nil
	test.That(t, p.Submit(broken), test.ShouldBeNil)
	res = <-results
	test.That(t, res.Err, test.ShouldNotBeNil)
	release <- struct{}{}

	test.That(t, p.Stats(), test.ShouldResemble, Stats{Processed: 2, Failed: 1, Superseded: 1})

	test.That(t, p.Close(), test.ShouldBeNil)
	test.That(t, p.Submit(goalFrame(t, 0, time.Unix(5, 0))), test.ShouldBeError, ErrClosed)
}

func TestCameraWorkerCancelsClassification(t *testing.T) {
	p := newPipeline(t, Options{})
	// driven by hand, without a run loop
	cw := &cameraWorker{p: p, logger: logging.NewTestLogger(t), wake: make(chan struct{}, 1)}

	frame := goalFrame(t, 7, time.Unix(1, 0))
	cw.offer(frame)
	_, frameCtx, cancel, ok := cw.take(context.Background())
	test.That(t, ok, test.ShouldBeTrue)
	defer cancel()
	_, _, _, ok = cw.take(context.Background())
	test.That(t, ok, test.ShouldBeFalse)

	// a newer frame cancels the one still being classified
	cw.offer(goalFrame(t, 7, time.Unix(2, 0)))
	test.That(t, frameCtx.Err(), test.ShouldNotBeNil)
	_, err := p.process(frameCtx, frame, cw.detecting)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

	// once the detector is running, newer frames no longer cancel
	next, frameCtx, cancelNext, ok := cw.take(context.Background())
	test.That(t, ok, test.ShouldBeTrue)
	defer cancelNext()
	test.That(t, next.Timestamp, test.ShouldEqual, time.Unix(2, 0))
	cw.detecting()
	cw.offer(goalFrame(t, 7, time.Unix(3, 0)))
	test.That(t, frameCtx.Err(), test.ShouldBeNil)
	test.That(t, p.Stats().Superseded, test.ShouldEqual, 0)
}

package utils

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallel(t *testing.T) {
	for _, totalSize := range []int{0, 1, 3, ParallelFactor, ParallelFactor*3 + 1, 1000} {
		seen := make([]int32, totalSize)
		var groups int
		var doneGroups int32
		err := GroupWorkParallel(
			context.Background(),
			totalSize,
			func(numGroups int) { groups = numGroups },
			func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
				return func(memberNum, workNum int) {
						atomic.AddInt32(&seen[workNum], 1)
					}, func() {
						atomic.AddInt32(&doneGroups, 1)
					}
			},
		)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, groups, test.ShouldBeLessThanOrEqualTo, totalSize)
		test.That(t, int(doneGroups), test.ShouldEqual, groups)
		for _, count := range seen {
			test.That(t, count, test.ShouldEqual, int32(1))
		}
	}
}

func TestGroupWorkParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int32
	err := GroupWorkParallel(ctx, 100, func(int) {},
		func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			return func(memberNum, workNum int) { atomic.AddInt32(&ran, 1) }, nil
		})
	test.That(t, err, test.ShouldBeError, context.Canceled)
	test.That(t, ran, test.ShouldEqual, int32(0))
}

func TestParallelForEachPixel(t *testing.T) {
	size := image.Pt(7, 13)
	var mu sync.Mutex
	visited := map[image.Point]int{}
	ParallelForEachPixel(size, func(x, y int) {
		mu.Lock()
		visited[image.Pt(x, y)]++
		mu.Unlock()
	})
	test.That(t, visited, test.ShouldHaveLength, 7*13)
	for _, count := range visited {
		test.That(t, count, test.ShouldEqual, 1)
	}
}

func TestStoppableWorkers(t *testing.T) {
	started := make(chan struct{})
	var stopped int32
	workers := NewStoppableWorkers(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		atomic.StoreInt32(&stopped, 1)
	})
	<-started
	workers.Stop()
	test.That(t, atomic.LoadInt32(&stopped), test.ShouldEqual, int32(1))
	test.That(t, workers.Context().Err(), test.ShouldNotBeNil)

	// Workers added after Stop never run.
	var late int32
	workers.AddWorkers(func(context.Context) { atomic.StoreInt32(&late, 1) })
	test.That(t, atomic.LoadInt32(&late), test.ShouldEqual, int32(0))
}

func TestStoppableWorkersParentCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	workers := NewStoppableWorkersWithContext(parent, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	cancel()
	<-done
	test.That(t, workers.Context().Err(), test.ShouldNotBeNil)
	workers.Stop()
}

func TestStoppableWorkersStopWaitsForEveryCamera(t *testing.T) {
	var finished int32
	workers := NewStoppableWorkers()
	for i := 0; i < 3; i++ {
		workers.AddWorkers(func(ctx context.Context) {
			<-ctx.Done()
			atomic.AddInt32(&finished, 1)
		})
	}
	// a panicking worker still counts as done so Stop returns
	workers.AddWorkers(func(context.Context) { panic("camera worker") })
	workers.Stop()
	test.That(t, atomic.LoadInt32(&finished), test.ShouldEqual, int32(3))
}

func TestMath(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, 3.141592653589793)
	test.That(t, RadToDeg(DegToRad(37)), test.ShouldAlmostEqual, 37.0)
	test.That(t, ClampInt(-3, 0, 10), test.ShouldEqual, 0)
	test.That(t, ClampInt(30, 0, 10), test.ShouldEqual, 10)
	test.That(t, ClampInt(4, 0, 10), test.ShouldEqual, 4)
	test.That(t, AbsInt(-4), test.ShouldEqual, 4)
	test.That(t, NewOutOfRangeError("angle", 2, 0, 1).Error(), test.ShouldEqual, "angle must be within [0, 1] but got 2")
}

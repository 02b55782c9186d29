package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"forest/internal/domain"
)

// TestMain verifies the supervisor's Start/Stop/StopAll cycle leaves no
// goroutine running past the grace period, per spec.md's graceful-shutdown
// invariant.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartRunsJobImmediatelyAndOnTicker(t *testing.T) {
	s := New(2 * time.Second)
	var calls int32
	err := s.Add(Job{
		Name:     "tick",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Start("tick"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.StopAll()

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected at least 2 runs (immediate + ticker), got %d", calls)
	}
}

func TestReentrancyGuardSkipsOverlappingRuns(t *testing.T) {
	s := New(2 * time.Second)
	started := make(chan struct{}, 10)
	release := make(chan struct{})
	var calls int32

	err := s.Add(Job{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			started <- struct{}{}
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Start("slow"); err != nil {
		t.Fatalf("start: %v", err)
	}

	<-started
	time.Sleep(30 * time.Millisecond) // several ticks would fire if unguarded
	close(release)
	s.StopAll()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 run while the first was in flight, got %d", calls)
	}
}

func TestJobErrorIsRecordedAndDoesNotStopSupervisor(t *testing.T) {
	s := New(2 * time.Second)
	err := s.Add(Job{
		Name:     "failing",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			return errors.New("boom")
		},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Start("failing"); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	s.StopAll()

	stats := s.Stats()["failing"]
	if stats.ErrorCount != 1 {
		t.Fatalf("expected 1 recorded error, got %d", stats.ErrorCount)
	}
	if stats.LastError == "" {
		t.Fatalf("expected a recorded error message")
	}

	other := s.Stats()
	if _, ok := other["failing"]; !ok {
		t.Fatalf("expected supervisor to remain usable after a job error")
	}
}

func TestJobPanicIsRecoveredAndRecorded(t *testing.T) {
	s := New(2 * time.Second)
	err := s.Add(Job{
		Name:     "panicky",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			panic("kaboom")
		},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Start("panicky"); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	s.StopAll()

	stats := s.Stats()["panicky"]
	if stats.ErrorCount == 0 {
		t.Fatalf("expected the panic to be recorded as an error")
	}
}

func TestPublishTriggersSubscribedJobImmediately(t *testing.T) {
	s := New(2 * time.Second)
	fired := make(chan struct{}, 1)
	err := s.Add(Job{
		Name:     "subscriber",
		Interval: time.Hour,
		Triggers: []EventType{EventTaskCompleted},
		Run: func(ctx context.Context) error {
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Start("subscriber"); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-fired // the initial run on Start

	s.Publish(Event{Type: EventTaskCompleted, ProjectID: "p", Path: "default"})
	select {
	case <-fired:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected Publish to trigger an immediate run")
	}
	s.StopAll()
}

func TestStopWaitsForGracePeriodThenReturns(t *testing.T) {
	s := New(30 * time.Millisecond)
	release := make(chan struct{})
	err := s.Add(Job{
		Name:     "stubborn",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-release
			return nil
		},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Start("stubborn"); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	if err := s.Stop("stubborn"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("expected Stop to wait out the grace period")
	}
	close(release)
}

type fakeActiveProject struct {
	projectID, path string
	ok              bool
}

func (f fakeActiveProject) ActivePath(ctx context.Context) (string, string, bool, error) {
	return f.projectID, f.path, f.ok, nil
}

type loaderFunc func(ctx context.Context, projectID, path string) (*domain.Tree, error)

func (f loaderFunc) Load(ctx context.Context, projectID, path string) (*domain.Tree, error) {
	return f(ctx, projectID, path)
}

type expanderFunc func(ctx context.Context, projectID, path string) error

func (f expanderFunc) Expand(ctx context.Context, projectID, path string) error {
	return f(ctx, projectID, path)
}

func TestExpansionAgentSkipsWhenNoActiveProject(t *testing.T) {
	var expandCalls int32
	agent := NewExpansionAgent(
		fakeActiveProject{ok: false},
		loaderFunc(func(ctx context.Context, projectID, path string) (*domain.Tree, error) { return nil, nil }),
		expanderFunc(func(ctx context.Context, projectID, path string) error {
			atomic.AddInt32(&expandCalls, 1)
			return nil
		}),
		time.Hour, 3,
	)
	if err := agent.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expandCalls != 0 {
		t.Fatalf("expected no expand call with no active project")
	}
}

func TestExpansionAgentTriggersExpandWhenFrontierLow(t *testing.T) {
	var expandCalls int32
	tree := &domain.Tree{
		StrategicBranches: []domain.StrategicBranch{{Name: "b"}},
		FrontierNodes: []domain.FrontierNode{
			{ID: "t1", Branch: "b", Status: domain.TaskPending},
		},
	}
	agent := NewExpansionAgent(
		fakeActiveProject{projectID: "p", path: "default", ok: true},
		loaderFunc(func(ctx context.Context, projectID, path string) (*domain.Tree, error) { return tree, nil }),
		expanderFunc(func(ctx context.Context, projectID, path string) error {
			atomic.AddInt32(&expandCalls, 1)
			return nil
		}),
		time.Hour, 3,
	)
	if err := agent.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expandCalls != 1 {
		t.Fatalf("expected 1 expand call with only 1 eligible task < min 3, got %d", expandCalls)
	}
}

func TestExpansionAgentSkipsWhenFrontierSufficient(t *testing.T) {
	var expandCalls int32
	tree := &domain.Tree{
		StrategicBranches: []domain.StrategicBranch{{Name: "b"}},
		FrontierNodes: []domain.FrontierNode{
			{ID: "t1", Branch: "b", Status: domain.TaskPending},
			{ID: "t2", Branch: "b", Status: domain.TaskPending},
			{ID: "t3", Branch: "b", Status: domain.TaskPending},
		},
	}
	agent := NewExpansionAgent(
		fakeActiveProject{projectID: "p", path: "default", ok: true},
		loaderFunc(func(ctx context.Context, projectID, path string) (*domain.Tree, error) { return tree, nil }),
		expanderFunc(func(ctx context.Context, projectID, path string) error {
			atomic.AddInt32(&expandCalls, 1)
			return nil
		}),
		time.Hour, 3,
	)
	if err := agent.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if expandCalls != 0 {
		t.Fatalf("expected no expand call with 3 eligible tasks meeting min 3, got %d", expandCalls)
	}
}

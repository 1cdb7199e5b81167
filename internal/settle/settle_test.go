package settle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAll_CollectsEveryOutcomeInOrder(t *testing.T) {
	errBad := errors.New("bad")
	var finished atomic.Int32

	outcomes := All(context.Background(),
		func(ctx context.Context) (string, error) {
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
			return "a", nil
		},
		func(ctx context.Context) (string, error) {
			finished.Add(1)
			return "", errBad
		},
		func(ctx context.Context) (string, error) {
			time.Sleep(10 * time.Millisecond)
			finished.Add(1)
			return "c", nil
		},
	)

	if finished.Load() != 3 {
		t.Fatalf("expected all tasks to finish, got %d", finished.Load())
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Value != "a" || !outcomes[0].OK() {
		t.Errorf("unexpected first outcome %+v", outcomes[0])
	}
	if !errors.Is(outcomes[1].Err, errBad) {
		t.Errorf("expected failure in second outcome, got %+v", outcomes[1])
	}
	if outcomes[2].Value != "c" {
		t.Errorf("unexpected third outcome %+v", outcomes[2])
	}
}

func TestPair_WaitsForSlowSideAfterFailure(t *testing.T) {
	slowDone := false

	a, b := Pair(context.Background(),
		func(ctx context.Context) (int, error) {
			return 0, errors.New("video failed")
		},
		func(ctx context.Context) (string, error) {
			time.Sleep(30 * time.Millisecond)
			slowDone = true
			return "thumb", nil
		},
	)

	if a.OK() {
		t.Error("expected first task to fail")
	}
	if !slowDone || b.Value != "thumb" {
		t.Error("expected second task to settle")
	}
}

func TestAll_RecoversPanics(t *testing.T) {
	outcomes := All(context.Background(), func(ctx context.Context) (int, error) {
		panic("boom")
	})
	if outcomes[0].Err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestAll_NoTasks(t *testing.T) {
	if got := All[int](context.Background()); len(got) != 0 {
		t.Errorf("expected no outcomes, got %d", len(got))
	}
}

// Package settle runs tasks concurrently and waits for every one of them,
// reporting each outcome on its own. A failing task never stops the others.
package settle

import (
	"context"
	"fmt"
	"sync"
)

type Outcome[T any] struct {
	Value T
	Err   error
}

func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

type Task[T any] func(ctx context.Context) (T, error)

// All starts every task at once and returns their outcomes in task order.
func All[T any](ctx context.Context, tasks ...Task[T]) []Outcome[T] {
	outcomes := make([]Outcome[T], len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task[T]) {
			defer wg.Done()
			outcomes[i] = run(ctx, task)
		}(i, task)
	}

	wg.Wait()
	return outcomes
}

// Pair runs two tasks of different result types and waits for both.
func Pair[A, B any](ctx context.Context, a Task[A], b Task[B]) (Outcome[A], Outcome[B]) {
	var (
		wg   sync.WaitGroup
		outA Outcome[A]
		outB Outcome[B]
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		outA = run(ctx, a)
	}()
	go func() {
		defer wg.Done()
		outB = run(ctx, b)
	}()

	wg.Wait()
	return outA, outB
}

func run[T any](ctx context.Context, task Task[T]) (out Outcome[T]) {
	defer func() {
		if p := recover(); p != nil {
			out = Outcome[T]{Err: fmt.Errorf("task panicked: %v", p)}
		}
	}()

	v, err := task(ctx)
	return Outcome[T]{Value: v, Err: err}
}

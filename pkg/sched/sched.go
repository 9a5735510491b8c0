// Package sched provides the cooperative scheduling hook used by the
// console while it waits for input.
//
// There is a single flow of control: the console calls Yield at its only
// suspension point and Yield gives every ready task a chance to run before
// returning. Nothing runs in parallel with the caller of Yield.
package sched

import (
	"runtime"
	"time"
)

// Scheduler is called by a blocked reader to let other work run.
type Scheduler interface {
	Yield()
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func()

func (f SchedulerFunc) Yield() { f() }

// Gosched yields the processor to other goroutines and then sleeps for
// Idle, if set, so that a reader polling an empty transport does not spin.
type Gosched struct {
	Idle time.Duration
}

func (g Gosched) Yield() {
	runtime.Gosched()
	if g.Idle > 0 {
		time.Sleep(g.Idle)
	}
}

// Task is a unit of background work. It returns false once it has
// finished and should be removed from the loop.
type Task func() bool

// Loop is a cooperative task list.
type Loop struct {
	// Idle is how long Yield sleeps after running the tasks.
	Idle  time.Duration
	tasks []Task
	ticks uint64
}

// NewLoop returns an empty loop that sleeps for idle on every Yield.
func NewLoop(idle time.Duration) *Loop {
	return &Loop{Idle: idle}
}

// Go adds a task to the loop. The task first runs on the next Yield.
func (l *Loop) Go(t Task) {
	l.tasks = append(l.tasks, t)
}

// Len returns the number of pending tasks.
func (l *Loop) Len() int {
	return len(l.tasks)
}

// Ticks returns the number of times Yield has been called.
func (l *Loop) Ticks() uint64 {
	return l.ticks
}

// Yield runs every pending task once, dropping the ones that finish, and
// then sleeps for Idle so that a reader polling an empty transport does
// not spin, whether or not there were tasks to run.
func (l *Loop) Yield() {
	l.ticks++
	if len(l.tasks) > 0 {
		// tasks added while running wait for the next Yield
		pending := l.tasks
		l.tasks = nil
		kept := pending[:0]
		for _, t := range pending {
			if t() {
				kept = append(kept, t)
			}
		}
		l.tasks = append(kept, l.tasks...)
	}
	if l.Idle > 0 {
		time.Sleep(l.Idle)
	} else {
		runtime.Gosched()
	}
}

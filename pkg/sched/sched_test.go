package sched

import (
	"testing"
	"time"
)

func TestLoop(t *testing.T) {
	l := NewLoop(0)
	var a, b int
	l.Go(func() bool {
		a++
		return a < 3
	})
	l.Go(func() bool {
		b++
		if b == 1 {
			l.Go(func() bool {
				b += 100
				return false
			})
		}
		return true
	})

	l.Yield()
	if a != 1 || b != 1 || l.Len() != 3 {
		t.Fatalf("after first yield: a=%d b=%d len=%d", a, b, l.Len())
	}
	l.Yield()
	l.Yield()
	if a != 3 {
		t.Errorf("a=%d", a)
	}
	if b != 103 {
		t.Errorf("b=%d", b)
	}
	if l.Len() != 1 {
		t.Errorf("len=%d", l.Len())
	}
	if l.Ticks() != 3 {
		t.Errorf("ticks=%d", l.Ticks())
	}
}

func TestLoopIdle(t *testing.T) {
	l := NewLoop(0)
	l.Yield()
	if l.Ticks() != 1 || l.Len() != 0 {
		t.Fatalf("ticks=%d len=%d", l.Ticks(), l.Len())
	}
	n := 0
	var s Scheduler = SchedulerFunc(func() { n++ })
	s.Yield()
	if n != 1 {
		t.Fatalf("n=%d", n)
	}
}

func TestLoopSleepsWithReadyTasks(t *testing.T) {
	const idle = 5 * time.Millisecond
	l := NewLoop(idle)
	n := 0
	l.Go(func() bool {
		n++
		return true
	})
	start := time.Now()
	for i := 0; i < 4; i++ {
		l.Yield()
	}
	if d := time.Since(start); d < 4*idle {
		t.Errorf("4 yields took %v, want at least %v", d, 4*idle)
	}
	if n != 4 {
		t.Errorf("task ran %d times", n)
	}
}

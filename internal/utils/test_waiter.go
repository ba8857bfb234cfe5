package utils

import (
	"fmt"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/karagenc/socketio-server/internal/sync"
)

const DefaultTestWaitTimeout = time.Second * 12

// TestWaiter is a sync.WaitGroup with a WaitTimeout function. Use this for testing purposes.
type TestWaiter struct {
	wg *sync.WaitGroup
}

func NewTestWaiter(delta int) *TestWaiter {
	wg := new(sync.WaitGroup)
	wg.Add(delta)
	return &TestWaiter{
		wg: wg,
	}
}

func (w *TestWaiter) Add(delta int) { w.wg.Add(delta) }

func (w *TestWaiter) Done() { w.wg.Done() }

func (w *TestWaiter) Wait() { w.wg.Wait() }

func (w *TestWaiter) WaitTimeout(t testing.TB, timeout time.Duration) (timedout bool) {
	return waitTimeout(t, w.wg, timeout)
}

// TestWaiterString waits for a set of named events. Each one must be done exactly once.
type TestWaiterString struct {
	wg      *sync.WaitGroup
	strings mapset.Set[string]
}

func NewTestWaiterString(names ...string) *TestWaiterString {
	w := &TestWaiterString{
		wg:      new(sync.WaitGroup),
		strings: mapset.NewSet[string](),
	}
	for _, name := range names {
		w.Add(name)
	}
	return w
}

func (w *TestWaiterString) Add(s string) {
	w.strings.Add(s)
	w.wg.Add(1)
}

func (w *TestWaiterString) Done(s string) {
	if !w.strings.Contains(s) {
		panic(fmt.Errorf("TestWaiterString: Done was already called on '%s'", s))
	}
	w.strings.Remove(s)
	w.wg.Done()
}

func (w *TestWaiterString) Wait() { w.wg.Wait() }

func (w *TestWaiterString) WaitTimeout(t testing.TB, timeout time.Duration) (timedout bool) {
	timedout = waitTimeout(t, w.wg, timeout)
	if timedout {
		t.Logf("still waiting for: %v", w.strings.ToSlice())
	}
	return
}

func waitTimeout(t testing.TB, wg *sync.WaitGroup, timeout time.Duration) bool {
	c := make(chan struct{})

	go func() {
		defer close(c)
		wg.Wait()
	}()

	select {
	case <-c:
		return false
	case <-time.After(timeout):
		t.Error("timeout exceeded")
		return true
	}
}

// WaitChan waits for c to be closed (or to yield a value) within DefaultTestWaitTimeout.
func WaitChan(t testing.TB, c <-chan struct{}) (timedout bool) {
	select {
	case <-c:
		return false
	case <-time.After(DefaultTestWaitTimeout):
		t.Error("timeout exceeded")
		return true
	}
}

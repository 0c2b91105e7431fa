package eventloop

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New()
	if err != nil {
		t.Fatalf("creating loop: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestLoopIdleRunsOnce(t *testing.T) {
	l := newTestLoop(t)
	ran := 0
	l.Idle(func() { ran++ })

	if err := l.Dispatch(0); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if ran != 1 {
		t.Fatalf("idle callback ran %d times, want 1", ran)
	}

	if err := l.Dispatch(0); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if ran != 1 {
		t.Errorf("idle callback ran again on the next iteration")
	}
}

// An idle callback queued from inside an idle callback runs on the next
// iteration, not the current one
func TestLoopIdleIsDeferred(t *testing.T) {
	l := newTestLoop(t)
	var order []string
	l.Idle(func() {
		order = append(order, "first")
		l.Idle(func() { order = append(order, "second") })
	})

	_ = l.Dispatch(0)
	if len(order) != 1 || order[0] != "first" {
		t.Fatalf("after one dispatch: %v", order)
	}
	_ = l.Dispatch(0)
	if len(order) != 2 || order[1] != "second" {
		t.Errorf("after two dispatches: %v", order)
	}
}

func TestLoopTimerFiresInOrder(t *testing.T) {
	l := newTestLoop(t)
	var order []int
	l.AddTimer(20*time.Millisecond, func() { order = append(order, 2) })
	l.AddTimer(5*time.Millisecond, func() { order = append(order, 1) })

	deadline := time.Now().Add(time.Second)
	for len(order) < 2 && time.Now().Before(deadline) {
		_ = l.Dispatch(50 * time.Millisecond)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("timers fired in order %v", order)
	}
}

func TestLoopTimerCancel(t *testing.T) {
	l := newTestLoop(t)
	fired := false
	timer := l.AddTimer(5*time.Millisecond, func() { fired = true })
	timer.Cancel()

	time.Sleep(10 * time.Millisecond)
	_ = l.Dispatch(0)
	if fired {
		t.Errorf("canceled timer fired")
	}
}

// Post is safe from another goroutine and wakes a blocked dispatch
func TestLoopPostWakesDispatch(t *testing.T) {
	l := newTestLoop(t)
	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Post(func() { close(done) })
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		_ = l.Dispatch(100 * time.Millisecond)
		select {
		case <-done:
			return
		default:
		}
	}
	t.Fatalf("posted callback never ran")
}

func TestLoopFDSource(t *testing.T) {
	l := newTestLoop(t)
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	got := 0
	token, err := l.AddFD(fds[0], func() {
		var buf [16]byte
		n, _ := unix.Read(fds[0], buf[:])
		got += n
	})
	if err != nil {
		t.Fatalf("AddFD: %v", err)
	}

	if _, err := unix.Write(fds[1], []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = l.Dispatch(100 * time.Millisecond)
	if got != 4 {
		t.Fatalf("read %d bytes through the source, want 4", got)
	}

	// After removal the callback must not fire again
	l.RemoveFD(token)
	_, _ = unix.Write(fds[1], []byte("x"))
	_ = l.Dispatch(10 * time.Millisecond)
	if got != 4 {
		t.Errorf("removed source still fired, got %d bytes", got)
	}
}

func TestLoopStopEndsRun(t *testing.T) {
	l := newTestLoop(t)
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Stop()
	}()
	done := make(chan error, 1)
	go func() { done <- l.Run() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after Stop")
	}
}

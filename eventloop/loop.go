// A single-threaded cooperative event loop: file-descriptor readiness via
// epoll, one-shot timers, an idle queue, and thread-safe callback injection
// for sources that deliver on their own goroutines (dbus, fsnotify). One
// goroutine owns the loop and everything driven by it; nothing here may be
// called re-entrantly from another thread except Post and Stop
package eventloop

import (
	"container/heap"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Identifies one fd registration so it can be removed on teardown
type SourceToken struct {
	fd int
}

type timerEntry struct {
	deadline time.Time
	cb       func()
	canceled bool
	index    int
}

// Handle to a scheduled timer, usable to cancel it before it fires
type Timer struct {
	entry *timerEntry
}

func (t *Timer) Cancel() {
	if t != nil && t.entry != nil {
		t.entry.canceled = true
	}
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) { e := x.(*timerEntry); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

type Loop struct {
	epollFd int
	wakeFd  int

	sources map[int]func()
	timers  timerHeap
	idle    []func()

	postedMu sync.Mutex
	posted   []func()

	stopped bool
}

func New() (*Loop, error) {
	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epollFd)
		return nil, err
	}
	l := &Loop{
		epollFd: epollFd,
		wakeFd:  wakeFd,
		sources: make(map[int]func()),
	}
	if err := unix.EpollCtl(epollFd, unix.EPOLL_CTL_ADD, wakeFd,
		&unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Loop) Close() {
	for fd := range l.sources {
		_ = unix.EpollCtl(l.epollFd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	unix.Close(l.wakeFd)
	unix.Close(l.epollFd)
}

// Registers cb to run whenever fd becomes readable
func (l *Loop) AddFD(fd int, cb func()) (SourceToken, error) {
	err := unix.EpollCtl(l.epollFd, unix.EPOLL_CTL_ADD, fd,
		&unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)})
	if err != nil {
		return SourceToken{}, err
	}
	l.sources[fd] = cb
	return SourceToken{fd: fd}, nil
}

func (l *Loop) RemoveFD(token SourceToken) {
	if _, ok := l.sources[token.fd]; !ok {
		return
	}
	_ = unix.EpollCtl(l.epollFd, unix.EPOLL_CTL_DEL, token.fd, nil)
	delete(l.sources, token.fd)
}

// Schedules cb to run once after d has elapsed
func (l *Loop) AddTimer(d time.Duration, cb func()) *Timer {
	e := &timerEntry{deadline: time.Now().Add(d), cb: cb}
	heap.Push(&l.timers, e)
	return &Timer{entry: e}
}

// Schedules cb to run on the next loop iteration, after all currently
// pending dispatches. This is the "don't re-enter the dispatch that
// produced the signal" escape hatch
func (l *Loop) Idle(cb func()) {
	l.idle = append(l.idle, cb)
}

// Thread-safe: queues cb to run on the loop goroutine and wakes the loop
func (l *Loop) Post(cb func()) {
	l.postedMu.Lock()
	l.posted = append(l.posted, cb)
	l.postedMu.Unlock()
	var one = [8]byte{1}
	_, _ = unix.Write(l.wakeFd, one[:])
}

// Thread-safe: makes Run return after the current dispatch
func (l *Loop) Stop() {
	l.Post(func() { l.stopped = true })
}

func (l *Loop) nextTimeout(max time.Duration) int {
	timeout := max
	if len(l.idle) > 0 {
		return 0
	}
	if len(l.timers) > 0 {
		until := time.Until(l.timers[0].deadline)
		if until < 0 {
			return 0
		}
		if max < 0 || until < timeout {
			timeout = until
		}
	}
	if timeout < 0 {
		return -1
	}
	ms := int(timeout / time.Millisecond)
	if ms == 0 && timeout > 0 {
		ms = 1
	}
	return ms
}

// Runs one iteration: waits up to max (negative blocks indefinitely) for a
// source, then fires ready fd callbacks, due timers, and the idle queue
func (l *Loop) Dispatch(max time.Duration) error {
	var events [32]unix.EpollEvent
	n, err := unix.EpollWait(l.epollFd, events[:], l.nextTimeout(max))
	if err != nil && err != unix.EINTR {
		return err
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == l.wakeFd {
			var buf [8]byte
			_, _ = unix.Read(l.wakeFd, buf[:])
			l.postedMu.Lock()
			posted := l.posted
			l.posted = nil
			l.postedMu.Unlock()
			for _, cb := range posted {
				cb()
			}
			continue
		}
		// The callback may have been removed by an earlier one in this batch
		if cb, ok := l.sources[fd]; ok {
			cb()
		}
	}

	now := time.Now()
	for len(l.timers) > 0 && !l.timers[0].deadline.After(now) {
		e := heap.Pop(&l.timers).(*timerEntry)
		if !e.canceled {
			e.cb()
		}
	}

	if len(l.idle) > 0 {
		idle := l.idle
		l.idle = nil
		for _, cb := range idle {
			cb()
		}
	}
	return nil
}

// Dispatches until Stop is called
func (l *Loop) Run() error {
	for !l.stopped {
		if err := l.Dispatch(-1); err != nil {
			return err
		}
	}
	return nil
}

package loop

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/bft-labs/loopleak/pkg/lifecycle"
	"github.com/bft-labs/loopleak/pkg/log"
	"github.com/bft-labs/loopleak/pkg/netengine"
	"github.com/bft-labs/loopleak/pkg/oneshot"
)

var (
	// ErrClosed is returned when work is submitted to a closing loop.
	ErrClosed = errors.New("loop: closed")

	// ErrUnsupportedWorkers is returned when more than one worker is requested.
	ErrUnsupportedWorkers = errors.New("loop: exactly one worker is supported")
)

// Drain target names.
const (
	TargetWatchdog = "watchdog"
	TargetTimers   = "timers"
)

// Task is a unit of work run on the loop worker.
type Task func()

// TimerID identifies a pending timer.
type TimerID uint64

// Options configures a Loop.
type Options struct {
	// Workers must be 0 or 1; 0 means 1.
	Workers int

	// BlockedThreshold is how long one task may hold the worker before the
	// watchdog logs a warning. Default: 2s.
	BlockedThreshold time.Duration

	// WatchdogInterval is how often the watchdog checks. Default: 1s.
	WatchdogInterval time.Duration

	// Engine configures the network engine owned by the loop.
	Engine netengine.Options

	Logger log.Logger
}

// Loop is a single-worker event loop.
type Loop struct {
	mu        sync.Mutex
	tasks     *queue.Queue
	closing   bool
	hooks     []func() error
	timers    map[TimerID]*time.Timer
	nextTimer TimerID

	wake      chan struct{}
	done      chan struct{}
	closed    *oneshot.Signal
	closeOnce sync.Once
	closeErr  error

	taskStart atomic.Int64
	executed  atomic.Uint64

	timerWork *lifecycle.Tracker
	watchdog  *lifecycle.Tracker
	engine    *netengine.Engine

	blockedThreshold time.Duration
	watchdogInterval time.Duration
	logger           log.Logger
}

// New starts a loop and blocks until its worker is running.
func New(opts Options) (*Loop, error) {
	if opts.Workers < 0 || opts.Workers > 1 {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedWorkers, opts.Workers)
	}
	if opts.BlockedThreshold <= 0 {
		opts.BlockedThreshold = 2 * time.Second
	}
	if opts.WatchdogInterval <= 0 {
		opts.WatchdogInterval = time.Second
	}

	l := &Loop{
		tasks:            queue.New(),
		timers:           make(map[TimerID]*time.Timer),
		wake:             make(chan struct{}, 1),
		done:             make(chan struct{}),
		closed:           oneshot.NewSignal(),
		timerWork:        lifecycle.NewTracker(),
		watchdog:         lifecycle.NewTracker(),
		engine:           netengine.New(opts.Engine),
		blockedThreshold: opts.BlockedThreshold,
		watchdogInterval: opts.WatchdogInterval,
		logger:           log.With(opts.Logger, log.Component("loop")),
	}

	ready := make(chan struct{})
	go l.run(ready)
	<-ready

	l.watchdog.Add()
	go l.watch()

	return l, nil
}

// Submit queues task for the worker.
func (l *Loop) Submit(task Task) error {
	if task == nil {
		return errors.New("loop: nil task")
	}
	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return ErrClosed
	}
	l.tasks.Add(task)
	l.mu.Unlock()
	l.signal()
	return nil
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Length()
}

// Executed returns the number of tasks the worker has run.
func (l *Loop) Executed() uint64 {
	return l.executed.Load()
}

// SetTimer runs fn on the worker after d.
func (l *Loop) SetTimer(d time.Duration, fn Task) (TimerID, error) {
	if fn == nil {
		return 0, errors.New("loop: nil timer task")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return 0, ErrClosed
	}
	l.nextTimer++
	id := l.nextTimer
	l.timerWork.Add()
	l.timers[id] = time.AfterFunc(d, func() {
		if !l.takeTimer(id) {
			return
		}
		defer l.timerWork.Done()
		if err := l.Submit(fn); err != nil {
			l.logger.Debug("timer fired after close", log.Uint64("timer", uint64(id)))
		}
	})
	return id, nil
}

// CancelTimer stops a pending timer. It reports whether the timer was
// pending.
func (l *Loop) CancelTimer(id TimerID) bool {
	l.mu.Lock()
	t, ok := l.timers[id]
	delete(l.timers, id)
	l.mu.Unlock()
	if !ok {
		return false
	}
	t.Stop()
	l.timerWork.Done()
	return true
}

// PendingTimers returns the number of timers not yet fired or cancelled.
func (l *Loop) PendingTimers() int {
	return l.timerWork.Count()
}

// takeTimer removes id from the pending set; the caller owns its Done.
func (l *Loop) takeTimer(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.timers[id]; !ok {
		return false
	}
	delete(l.timers, id)
	return true
}

// OnClose registers hook to run after the worker stops and before the network
// engine is released. Hooks run in registration order.
func (l *Loop) OnClose(hook func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return ErrClosed
	}
	l.hooks = append(l.hooks, hook)
	return nil
}

// Engine returns the loop's network engine.
func (l *Loop) Engine() *netengine.Engine {
	return l.engine
}

// Closing reports whether Close has been called.
func (l *Loop) Closing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closing
}

// Closed returns a channel closed once the loop has fully shut down.
func (l *Loop) Closed() <-chan struct{} {
	return l.closed.Done()
}

// Close shuts the loop down asynchronously and calls cb, on its own
// goroutine, once shutdown completes. Every call's cb runs; only the first
// call initiates shutdown.
func (l *Loop) Close(cb func(error)) {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closing = true
		l.mu.Unlock()
		l.signal()
		go l.finishClose()
	})
	if cb == nil {
		return
	}
	go func() {
		<-l.closed.Done()
		cb(l.closeErr)
	}()
}

// Targets returns the subsystems to drain after Close, in drain order.
func (l *Loop) Targets() []lifecycle.Target {
	return []lifecycle.Target{
		lifecycle.TargetFunc{TargetName: TargetWatchdog, Await: l.watchdog.WaitWithTimeout},
		lifecycle.TargetFunc{TargetName: TargetTimers, Await: l.timerWork.WaitWithTimeout},
		l.engine,
	}
}

func (l *Loop) finishClose() {
	<-l.done

	l.mu.Lock()
	hooks := l.hooks
	l.hooks = nil
	timers := l.timers
	l.timers = make(map[TimerID]*time.Timer)
	l.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		if err := runHook(h); err != nil {
			errs = append(errs, err)
		}
	}

	for _, t := range timers {
		t.Stop()
		l.timerWork.Done()
	}

	l.engine.Close()
	l.closeErr = errors.Join(errs...)
	l.closed.Fire()
}

func runHook(h func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loop: close hook panicked: %v", r)
		}
	}()
	return h()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run(ready chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)
	close(ready)

	for {
		task, ok := l.next()
		if !ok {
			return
		}
		l.exec(task)
	}
}

// next blocks for the next task. It returns false once the loop is closing
// and the queue is empty.
func (l *Loop) next() (Task, bool) {
	for {
		l.mu.Lock()
		if l.tasks.Length() > 0 {
			task := l.tasks.Remove().(Task)
			l.mu.Unlock()
			return task, true
		}
		if l.closing {
			l.mu.Unlock()
			return nil, false
		}
		l.mu.Unlock()
		<-l.wake
	}
}

func (l *Loop) exec(task Task) {
	l.taskStart.Store(time.Now().UnixNano())
	defer func() {
		l.taskStart.Store(0)
		l.executed.Add(1)
		if r := recover(); r != nil {
			l.logger.Error("task panicked", log.Any("panic", r))
		}
	}()
	task()
}

// watch warns once per task that holds the worker past the threshold.
func (l *Loop) watch() {
	defer l.watchdog.Done()
	tick := time.NewTicker(l.watchdogInterval)
	defer tick.Stop()

	var warned int64
	for {
		select {
		case <-l.done:
			return
		case <-tick.C:
			start := l.taskStart.Load()
			if start == 0 || start == warned {
				continue
			}
			blocked := time.Since(time.Unix(0, start))
			if blocked < l.blockedThreshold {
				continue
			}
			warned = start
			l.logger.Warn("loop worker blocked",
				log.Duration("blocked", blocked),
				log.Duration("threshold", l.blockedThreshold),
			)
		}
	}
}

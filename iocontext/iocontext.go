// Package iocontext provides the execution context that runs socket
// completion handlers.
//
// A Context owns a fixed set of worker goroutines draining one FIFO of
// posted tasks.  Sockets borrow a Context and post their completions to
// it; they never start or stop it.  Whoever creates the Context stops it,
// and must close every socket bound to it first.
package iocontext

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// ErrStopped is returned by Post once Stop has been called.
var ErrStopped = errors.New("iocontext: stopped")

// Task is a unit of work posted to a Context.
type Task func()

// Context is a worker pool fed by an unbounded FIFO.
type Context struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   *queue.Queue // of Task
	stopped bool
	wg      sync.WaitGroup

	workers int
	logger  *zap.Logger

	posted    atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

// Option configures a Context.
type Option func(*Context)

// WithWorkers sets the number of worker goroutines.  n <= 0 selects
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *Context) { c.workers = n }
}

// WithLogger overrides the package logger for this Context.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// New creates a Context and starts its workers.
func New(opts ...Option) *Context {
	c := &Context{tasks: queue.New()}
	for _, o := range opts {
		o(c)
	}
	if c.workers <= 0 {
		c.workers = runtime.NumCPU()
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	c.cond = sync.NewCond(&c.mu)

	c.wg.Add(c.workers)
	for i := 0; i < c.workers; i++ {
		go c.worker(i)
	}
	return c
}

// Post enqueues fn to run on one of the workers.
func (c *Context) Post(fn Task) error {
	if fn == nil {
		return fmt.Errorf("iocontext: nil task")
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	c.tasks.Add(fn)
	c.posted.Add(1)
	c.mu.Unlock()
	c.cond.Signal()
	return nil
}

// Stop refuses further posts, lets the workers drain what is already
// queued, and waits for them to exit.  It is idempotent.  Calling Stop
// from inside a task deadlocks.
func (c *Context) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.cond.Broadcast()
	c.wg.Wait()
}

// Stopped reports whether Stop has been called.
func (c *Context) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Pending returns the number of queued tasks not yet picked up.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tasks.Length()
}

// Workers returns the number of worker goroutines.
func (c *Context) Workers() int { return c.workers }

// Stats returns basic counters.
func (c *Context) Stats() map[string]int64 {
	return map[string]int64{
		"posted":    c.posted.Load(),
		"completed": c.completed.Load(),
		"panics":    c.panics.Load(),
		"pending":   int64(c.Pending()),
		"workers":   int64(c.workers),
	}
}

func (c *Context) worker(id int) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		for c.tasks.Length() == 0 && !c.stopped {
			c.cond.Wait()
		}
		if c.tasks.Length() == 0 {
			c.mu.Unlock()
			return
		}
		task := c.tasks.Remove().(Task)
		c.mu.Unlock()

		c.run(id, task)
	}
}

// run executes task, recovering from panics so a bad handler cannot
// take a worker down with it.
func (c *Context) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			c.panics.Add(1)
			c.logger.Error("task panicked",
				zap.Int("worker", id),
				zap.Any("panic", r))
		}
		c.completed.Add(1)
	}()
	task()
}

package controller

import (
	"sync"

	"mirrorctl/scrcpy"
)

// QueueCapacity is the number of commands buffered between producers and
// the writer.
const QueueCapacity = 64

// Queue is a bounded FIFO of commands with a blocking Pop for the single
// consumer.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   [QueueCapacity]scrcpy.Command
	head    int
	size    int
	stopped bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends cmd. It returns false if the queue is full or stopped, in
// which case the caller still owns cmd.
func (q *Queue) Push(cmd scrcpy.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushLocked(cmd)
}

func (q *Queue) pushLocked(cmd scrcpy.Command) bool {
	if q.stopped || q.size == QueueCapacity {
		return false
	}
	q.items[(q.head+q.size)%QueueCapacity] = cmd
	q.size++
	if q.size == 1 {
		q.cond.Signal()
	}
	return true
}

// Pop blocks until a command is available or the queue is stopped. Once
// stopped it returns false even if commands remain; use Drain for those.
func (q *Queue) Pop() (scrcpy.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.size == 0 && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped {
		return nil, false
	}
	return q.popLocked(), true
}

func (q *Queue) popLocked() scrcpy.Command {
	cmd := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % QueueCapacity
	q.size--
	return cmd
}

// Stop wakes every waiter and makes further pushes fail.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Drain removes and returns whatever is left, oldest first.
func (q *Queue) Drain() []scrcpy.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]scrcpy.Command, 0, q.size)
	for q.size > 0 {
		out = append(out, q.popLocked())
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Package responder hands persisted customer messages to the external auto-responder.
package responder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"InboxGate/entity"
	"InboxGate/internal/lib/sl"
)

var (
	ErrQueueFull   = errors.New("responder queue is full")
	ErrQueueClosed = errors.New("responder queue is closed")
)

// Task is the payload delivered to the auto-responder.
type Task struct {
	WorkspaceID    string          `json:"workspace_id"`
	ConversationID string          `json:"conversation_id"`
	Provider       entity.Provider `json:"provider"`
	ThreadID       string          `json:"thread_id"`
	MessageID      string          `json:"message_id"`
	Text           string          `json:"text"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Trigger interface {
	Trigger(ctx context.Context, task Task) error
}

// Queue runs triggers on a fixed pool of workers. Enqueue never blocks the caller.
type Queue struct {
	trigger Trigger
	tasks   chan Task
	workers int
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	log     *slog.Logger
}

func NewQueue(log *slog.Logger, trigger Trigger, workers, size int, timeout time.Duration) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Queue{
		trigger: trigger,
		tasks:   make(chan Task, size),
		workers: workers,
		timeout: timeout,
		log:     log.With(sl.Module("responder.queue")),
	}
}

func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	q.log.With(slog.Int("workers", q.workers), slog.Int("capacity", cap(q.tasks))).Info("responder queue started")
}

// Stop closes the queue and waits for in-flight tasks to drain.
func (q *Queue) Stop() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()
	})
	q.wg.Wait()
}

func (q *Queue) Enqueue(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		q.log.With(
			slog.String("conversation_id", task.ConversationID),
			slog.String("message_id", task.MessageID),
		).Warn("responder task dropped")
		return ErrQueueFull
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.process(task)
	}
}

func (q *Queue) process(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.log.With(slog.Any("panic", r)).Error("responder trigger panicked")
		}
	}()

	if err := q.trigger.Trigger(ctx, task); err != nil {
		q.log.With(
			slog.String("conversation_id", task.ConversationID),
			slog.String("message_id", task.MessageID),
		).Error("responder trigger failed", sl.Err(err))
		return
	}
	q.log.With(slog.String("conversation_id", task.ConversationID)).Debug("responder triggered")
}

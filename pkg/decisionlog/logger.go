package decisionlog

import (
	"log"
	"sync"
	"time"

	"github.com/zen-systems/intentgate/pkg/router"
)

const (
	defaultQueueSize  = 256
	defaultMaxRetries = 3
	defaultBackoff    = 100 * time.Millisecond
)

// Logger decouples decision recording from the routing path. Record enqueues
// and returns immediately; a single background worker drains the queue into
// the store with retry and exponential backoff. A full queue drops the
// decision rather than blocking the router.
type Logger struct {
	store      *Store
	queue      chan *router.Decision
	maxRetries int
	backoff    time.Duration

	wg       sync.WaitGroup
	closing  chan struct{}
	closeOne sync.Once
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithQueueSize overrides the queue capacity.
func WithQueueSize(n int) LoggerOption {
	return func(l *Logger) {
		if n > 0 {
			l.queue = make(chan *router.Decision, n)
		}
	}
}

// WithRetry overrides the per-decision retry policy.
func WithRetry(maxRetries int, backoff time.Duration) LoggerOption {
	return func(l *Logger) {
		l.maxRetries = maxRetries
		l.backoff = backoff
	}
}

// NewLogger starts the background writer over the given store.
func NewLogger(store *Store, opts ...LoggerOption) *Logger {
	l := &Logger{
		store:      store,
		queue:      make(chan *router.Decision, defaultQueueSize),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		closing:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.run()
	return l
}

// Record enqueues a decision for persistence. It never blocks; if the queue
// is full, or the logger is already closed, the decision is dropped with a
// log line. Losing an audit row is preferable to stalling routing.
func (l *Logger) Record(decision *router.Decision) {
	select {
	case <-l.closing:
		log.Printf("[decisionlog] logger closed, dropping decision %s", decision.ID)
		return
	default:
	}
	select {
	case l.queue <- decision:
	default:
		log.Printf("[decisionlog] queue full, dropping decision %s", decision.ID)
	}
}

// Close stops accepting new decisions, drains the queue, and waits for the
// worker to finish. Safe to call more than once.
func (l *Logger) Close() {
	l.closeOne.Do(func() { close(l.closing) })
	l.wg.Wait()
}

func (l *Logger) run() {
	defer l.wg.Done()
	for {
		select {
		case decision := <-l.queue:
			l.persist(decision)
		case <-l.closing:
			// Drain whatever was enqueued before the close signal. The
			// queue is never closed, so a straggling Record cannot panic;
			// it is dropped by the closing guard instead.
			for {
				select {
				case decision := <-l.queue:
					l.persist(decision)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) persist(decision *router.Decision) {
	backoff := l.backoff
	for attempt := 0; ; attempt++ {
		err := l.store.Insert(decision)
		if err == nil {
			return
		}
		if attempt >= l.maxRetries {
			log.Printf("[decisionlog] giving up on decision %s after %d attempts: %v",
				decision.ID, attempt+1, err)
			return
		}
		log.Printf("[decisionlog] insert failed (attempt %d), retrying: %v", attempt+1, err)

		select {
		case <-time.After(backoff):
		case <-l.closing:
			// Shutting down: one last immediate attempt, then let the
			// drain loop move on.
			if err := l.store.Insert(decision); err != nil {
				log.Printf("[decisionlog] dropped decision %s during shutdown: %v", decision.ID, err)
			}
			return
		}
		backoff *= 2
	}
}

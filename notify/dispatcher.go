package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/discipline-engine/discipline"
)

// DefaultBufferSize is the queue length used when none is configured.
const DefaultBufferSize = 256

// Dispatcher implements discipline.Notifier with a buffered queue drained
// by one worker goroutine. Notify never blocks.
type Dispatcher struct {
	Sender      Sender
	Logger      *slog.Logger
	SendTimeout time.Duration

	queue   chan Message
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	closed  bool

	// OnDrop is called for every dropped message. Optional.
	OnDrop func(Message)
}

var _ discipline.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher with the given queue length.
func NewDispatcher(sender Sender, logger *slog.Logger, bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Dispatcher{
		Sender:      sender,
		Logger:      logger,
		SendTimeout: 5 * time.Second,
		queue:       make(chan Message, bufferSize),
		stop:        make(chan struct{}),
	}
}

// Start launches the worker.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true
	d.wg.Add(1)
	go d.run()
}

// Stop drains queued messages and waits for the worker to exit. Messages
// queued on a dispatcher that was never started are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	started := d.started
	close(d.stop)
	d.mu.Unlock()

	if started {
		d.wg.Wait()
	}
	for {
		select {
		case msg := <-d.queue:
			d.drop(msg, "dispatcher stopped")
		default:
			return
		}
	}
}

// Notify enqueues the message; a full queue or stopped dispatcher drops it.
// The closed check and the send happen under one lock, so nothing is
// enqueued after Stop has drained the queue.
func (d *Dispatcher) Notify(_ context.Context, employeeID discipline.EmployeeID, rule discipline.DisciplinaryActionRule, rec discipline.DisciplinaryRecord) error {
	msg := NewMessage(employeeID, rule, rec)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.drop(msg, "dispatcher stopped")
		return nil
	}
	select {
	case d.queue <- msg:
		d.mu.Unlock()
		return nil
	default:
	}
	d.mu.Unlock()

	d.drop(msg, "queue full")
	return nil
}

// Pending returns the number of queued messages.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.queue:
			d.send(msg)
		case <-d.stop:
			for {
				select {
				case msg := <-d.queue:
					d.send(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) send(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.SendTimeout)
	defer cancel()

	if err := d.Sender.Send(ctx, msg); err != nil {
		d.Logger.Error("notification delivery failed",
			slog.String("employee_id", msg.EmployeeID),
			slog.String("record_id", msg.RecordID),
			slog.Any("error", err))
	}
}

func (d *Dispatcher) drop(msg Message, reason string) {
	d.Logger.Warn("notification dropped",
		slog.String("reason", reason),
		slog.String("employee_id", msg.EmployeeID),
		slog.String("record_id", msg.RecordID))
	if d.OnDrop != nil {
		d.OnDrop(msg)
	}
}

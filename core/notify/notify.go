// Package notify delivers subject and station notifications. Delivery is
// best effort: a failed channel is logged, metered and reported, and never
// undoes the allocation that produced the message.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/kilianp07/fuelq/core/logger"
	"github.com/kilianp07/fuelq/core/metrics"
	"github.com/kilianp07/fuelq/core/model"
	"github.com/kilianp07/fuelq/core/monitoring"
	"github.com/kilianp07/fuelq/core/store"
)

// Notifier delivers notifications on one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ns []model.Notification) error
}

// New builds a notification with a fresh id.
func New(recipient, title, message string, at time.Time) model.Notification {
	return model.Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Title:     title,
		Message:   message,
		CreatedAt: at,
	}
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Name() string                                      { return "nop" }
func (Nop) Notify(context.Context, []model.Notification) error { return nil }

// Inbox stores notifications so subjects can list and mark them read.
type Inbox struct {
	repo store.NotificationRepo
}

// NewInbox returns a store-backed notifier.
func NewInbox(repo store.NotificationRepo) *Inbox { return &Inbox{repo: repo} }

func (i *Inbox) Name() string { return "inbox" }

func (i *Inbox) Notify(ctx context.Context, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return i.repo.AddNotifications(ctx, ns...)
}

// Multi fans a batch out to every channel. All channels are attempted and
// their errors are combined.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, ns []model.Notification) error {
	var err error
	for _, n := range m {
		if e := n.Notify(ctx, ns); e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", n.Name(), e))
		}
	}
	return err
}

// Options tune a Dispatcher.
type Options struct {
	Timeout time.Duration
	Logger  logger.Logger
	Sink    metrics.MetricsSink
}

// Dispatcher sends batches asynchronously over a set of channels.
type Dispatcher struct {
	channels []Notifier
	timeout  time.Duration
	log      logger.Logger
	recorder metrics.NotificationRecorder

	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	failures func()
}

// NewDispatcher creates a dispatcher over channels. A zero timeout defaults
// to five seconds.
func NewDispatcher(opts Options, channels ...Notifier) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	d := &Dispatcher{
		channels: channels,
		timeout:  opts.Timeout,
		log:      logger.OrNop(opts.Logger),
	}
	if r, ok := opts.Sink.(metrics.NotificationRecorder); ok {
		d.recorder = r
	}
	return d
}

// OnFailure registers a callback invoked once per failed channel delivery.
func (d *Dispatcher) OnFailure(fn func()) { d.failures = fn }

// Send queues ns for delivery and returns immediately. Sends after Close
// are dropped.
func (d *Dispatcher) Send(ns ...model.Notification) {
	if len(ns) == 0 {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warnf("dispatcher closed, dropping %d notifications", len(ns))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()
	batch := append([]model.Notification(nil), ns...)
	go func() {
		defer d.wg.Done()
		monitoring.Guard(map[string]string{"module": "notify"}, func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			_ = d.Deliver(ctx, batch)
		})
	}()
}

// Deliver sends ns synchronously on every channel and returns the combined
// error.
func (d *Dispatcher) Deliver(ctx context.Context, ns []model.Notification) error {
	var err error
	for _, ch := range d.channels {
		e := ch.Notify(ctx, ns)
		d.record(ch.Name(), ns, e)
		if e == nil {
			continue
		}
		err = multierr.Append(err, fmt.Errorf("%s: %w", ch.Name(), e))
		d.log.Errorf("notification channel %s failed: %v", ch.Name(), e)
		monitoring.CaptureException(e, map[string]string{"module": "notify", "channel": ch.Name()})
		if d.failures != nil {
			d.failures()
		}
	}
	return err
}

func (d *Dispatcher) record(channel string, ns []model.Notification, err error) {
	if d.recorder == nil {
		return
	}
	now := time.Now()
	for _, n := range ns {
		ev := metrics.NotificationEvent{Channel: channel, Recipient: n.Recipient, Delivered: err == nil, Time: now}
		if err != nil {
			ev.Error = err.Error()
		}
		if rerr := d.recorder.RecordNotification(ev); rerr != nil {
			d.log.Warnf("record notification: %v", rerr)
		}
	}
}

// Wait blocks until in-flight sends finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Close stops accepting sends and waits for in-flight ones.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}

package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	errs   []error
	panics []any
}

func (r *recorder) CaptureException(err error, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) CapturePanic(v any, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics = append(r.panics, v)
}

func (r *recorder) Flush(time.Duration) {}

func TestGuardCapturesPanic(t *testing.T) {
	rec := &recorder{}
	Init(rec)
	defer Init(nil)

	Guard(map[string]string{"component": "notify"}, func() { panic("boom") })
	if len(rec.panics) != 1 || rec.panics[0] != "boom" {
		t.Fatalf("expected captured panic, got %v", rec.panics)
	}
}

func TestCaptureExceptionSkipsNil(t *testing.T) {
	rec := &recorder{}
	Init(rec)
	defer Init(nil)

	CaptureException(nil, nil)
	CaptureException(errors.New("store down"), map[string]string{"op": "fill"})
	if len(rec.errs) != 1 {
		t.Fatalf("expected 1 error got %d", len(rec.errs))
	}
	Flush(time.Millisecond)
}

package browser

import (
	"context"
	"strings"
	"time"
)

// ResolutionState is the outcome of a frame lookup.
type ResolutionState int

const (
	// Found means a matching frame with an attached document exists.
	Found ResolutionState = iota
	// NotYetAttached means a matching iframe element exists but its document
	// never became available before the deadline.
	NotYetAttached
	// NeverAppeared means no matching iframe element showed up at all.
	NeverAppeared
)

func (s ResolutionState) String() string {
	switch s {
	case Found:
		return "found"
	case NotYetAttached:
		return "not yet attached"
	case NeverAppeared:
		return "never appeared"
	}
	return "unknown"
}

// Resolution is the typed result of FrameResolver.Resolve.
type Resolution struct {
	State ResolutionState
	Frame Frame
	// Err is the last error returned by the page while polling, if any.
	Err error
}

// FrameResolver locates a nested content frame by URL substring.
type FrameResolver struct {
	Timeout  time.Duration
	Interval time.Duration
}

// NewFrameResolver returns a resolver polling every 250ms up to timeout.
func NewFrameResolver(timeout time.Duration) *FrameResolver {
	return &FrameResolver{Timeout: timeout, Interval: 250 * time.Millisecond}
}

// Resolve polls page until a frame whose src contains marker is attached,
// the timeout elapses, or ctx is done.
func (r *FrameResolver) Resolve(ctx context.Context, page Page, marker string) Resolution {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	interval := r.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	res := Resolution{State: NeverAppeared}
	for {
		frames, err := page.Frames(ctx)
		if err != nil {
			res.Err = err
		}
		for _, f := range frames {
			if !strings.Contains(f.Src, marker) {
				continue
			}
			if f.Attached {
				return Resolution{State: Found, Frame: f}
			}
			res.State = NotYetAttached
			res.Frame = f
		}

		select {
		case <-ctx.Done():
			return res
		case <-ticker.C:
		}
	}
}

package browser

import "context"

// Frame is an iframe found anywhere in the page, nested frames included.
type Frame struct {
	// Src is the iframe's src attribute.
	Src string
	// Attached reports whether the frame's content document is available.
	Attached bool
	// ID identifies the frame for scoped queries.
	ID string
}

// Page is the navigation capability the harvesters consume: one browser tab
// with a history stack. A nil scope addresses the top document.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitLoad blocks until the current document is ready.
	WaitLoad(ctx context.Context) error
	// Back pops one entry off the history stack.
	Back(ctx context.Context) error

	HTML(ctx context.Context, scope *Frame) (string, error)
	Frames(ctx context.Context) ([]Frame, error)
	Count(ctx context.Context, scope *Frame, selector string) (int, error)

	// ClickText activates the first element of the top document whose text
	// equals text.
	ClickText(ctx context.Context, text string) error
	// ClickNth activates the index-th element matching selector in scope.
	ClickNth(ctx context.Context, scope *Frame, selector string, index int) error

	Close() error
}

// Browser opens pages.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

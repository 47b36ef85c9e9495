package browser

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"discount-harvester/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// blockedResources are never downloaded; the harvesters only read markup.
var blockedResources = []string{"*.png", "*.jpg", "*.jpeg", "*.svg", "*.css", "*.woff", "*.woff2"}

// Options configures the headless browser.
type Options struct {
	ChromeBin      string
	Headless       bool
	BlockResources bool
}

// Chrome is a Browser backed by a chromedp-controlled Chrome process.
type Chrome struct {
	opts          Options
	logger        utils.EventSink
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// Launch starts Chrome. Site isolation is disabled so nested cross-origin
// frames live in the page's own renderer and can be queried directly.
func Launch(ctx context.Context, opts Options, logger utils.EventSink) (*Chrome, error) {
	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-site-isolation-trials", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process,Translate"),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, eris.Wrap(err, "browser: start chrome")
	}

	return &Chrome{
		opts:          opts,
		logger:        logger,
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

// NewPage opens a new tab.
func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	p := &chromePage{tabCtx: tabCtx, cancel: cancel}

	actions := []chromedp.Action{}
	if c.opts.BlockResources {
		actions = append(actions, network.Enable(), network.SetBlockedURLS(blockedResources))
	}
	if err := p.run(ctx, actions...); err != nil {
		cancel()
		return nil, eris.Wrap(err, "browser: open tab")
	}
	return p, nil
}

func (c *Chrome) Close() error {
	c.cancelBrowser()
	c.cancelAlloc()
	return nil
}

type chromePage struct {
	tabCtx context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by ctx's cancellation and deadline.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

func (p *chromePage) WaitLoad(ctx context.Context) error {
	var ready bool
	err := p.run(ctx, chromedp.Poll(`document.readyState === "complete"`, &ready,
		chromedp.WithPollingInterval(100*time.Millisecond)))
	if err != nil {
		return eris.Wrap(err, "browser: wait load")
	}
	return nil
}

// Back moves to the previous history entry without waiting for a load
// event, which never fires for a same-document history pop. Callers wait
// with WaitLoad.
func (p *chromePage) Back(ctx context.Context) error {
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cur, entries, err := cdppage.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		if cur <= 0 || int(cur) >= len(entries) {
			return eris.New("no previous history entry")
		}
		return cdppage.NavigateToHistoryEntry(entries[cur-1].ID).Do(ctx)
	}))
	if err != nil {
		return eris.Wrap(err, "browser: go back")
	}
	return nil
}

func (p *chromePage) HTML(ctx context.Context, scope *Frame) (string, error) {
	var html string
	if err := p.eval(ctx, scope, `document.documentElement.outerHTML`, &html); err != nil {
		return "", eris.Wrap(err, "browser: read html")
	}
	return html, nil
}

// Frames walks the frame tree, nested frames included.
func (p *chromePage) Frames(ctx context.Context) ([]Frame, error) {
	var frames []Frame
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := cdppage.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		var walk func(t *cdppage.FrameTree)
		walk = func(t *cdppage.FrameTree) {
			for _, child := range t.ChildFrames {
				frames = append(frames, describeFrame(ctx, child.Frame))
				walk(child)
			}
		}
		walk(tree)
		return nil
	}))
	if err != nil {
		return nil, eris.Wrap(err, "browser: list frames")
	}
	return frames, nil
}

// describeFrame prefers the owning iframe's src attribute over the frame's
// committed URL, which stays about:blank until the document commits.
func describeFrame(ctx context.Context, f *cdp.Frame) Frame {
	out := Frame{
		Src:      f.URL,
		Attached: f.URL != "" && !strings.HasPrefix(f.URL, "about:"),
		ID:       string(f.ID),
	}
	owner, _, err := dom.GetFrameOwner(f.ID).Do(ctx)
	if err != nil {
		return out
	}
	node, err := dom.DescribeNode().WithBackendNodeID(owner).Do(ctx)
	if err != nil {
		return out
	}
	if src := node.AttributeValue("src"); src != "" {
		out.Src = src
	}
	return out
}

func (p *chromePage) Count(ctx context.Context, scope *Frame, selector string) (int, error) {
	var n int
	expr := `document.querySelectorAll(` + jsString(selector) + `).length`
	if err := p.eval(ctx, scope, expr, &n); err != nil {
		return 0, eris.Wrapf(err, "browser: count %s", selector)
	}
	return n, nil
}

func (p *chromePage) ClickText(ctx context.Context, text string) error {
	expr := `(function(text) {
		var all = Array.prototype.slice.call(document.querySelectorAll('body *'));
		var norm = function(el) { return (el.textContent || '').replace(/\s+/g, ' ').trim(); };
		var leaves = all.filter(function(el) { return el.children.length === 0; });
		var el = leaves.find(function(el) { return norm(el) === text; }) ||
		         leaves.find(function(el) { return norm(el).indexOf(text) !== -1; });
		if (!el) return false;
		el.scrollIntoView({block: 'center'});
		el.click();
		return true;
	})(` + jsString(text) + `)`

	var clicked bool
	if err := p.eval(ctx, nil, expr, &clicked); err != nil {
		return eris.Wrapf(err, "browser: click text %q", text)
	}
	if !clicked {
		return eris.Errorf("browser: no element with text %q", text)
	}
	return nil
}

func (p *chromePage) ClickNth(ctx context.Context, scope *Frame, selector string, index int) error {
	expr := `(function(sel, i) {
		var els = document.querySelectorAll(sel);
		if (i >= els.length) return false;
		els[i].scrollIntoView({block: 'center'});
		els[i].click();
		return true;
	})(` + jsString(selector) + `, ` + jsInt(index) + `)`

	var clicked bool
	if err := p.eval(ctx, scope, expr, &clicked); err != nil {
		return eris.Wrapf(err, "browser: click %s[%d]", selector, index)
	}
	if !clicked {
		return eris.Errorf("browser: %s has no element %d", selector, index)
	}
	return nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// eval evaluates expr in the top document or, for a frame scope, in an
// isolated world of that frame. The DOM is shared with the page, so clicks
// reach the page's own handlers.
func (p *chromePage) eval(ctx context.Context, scope *Frame, expr string, res interface{}) error {
	if scope == nil {
		return p.run(ctx, chromedp.Evaluate(expr, res))
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		world, err := cdppage.CreateIsolatedWorld(cdp.FrameID(scope.ID)).WithWorldName("harvester").Do(ctx)
		if err != nil {
			return eris.Wrap(err, "create isolated world")
		}
		return chromedp.Evaluate(expr, res, func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
			return params.WithContextID(world)
		}).Do(ctx)
	}))
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsInt(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

package render

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Screenshotter captures a loaded page as a PNG file.
type Screenshotter interface {
	Screenshot(ctx context.Context, pageURL, out string) error
	Close() error
}

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome. Empty
	// launches a local browser.
	RemoteURL string
	// Bin overrides the browser binary the launcher starts.
	Bin      string
	Headless bool
	Width    int
	Height   int
	// Settle is how long to wait after load for map tiles to arrive.
	Settle     time.Duration
	NavTimeout time.Duration
}

// RodScreenshotter drives Chrome through go-rod. The browser starts on the
// first screenshot and is reused until Close.
type RodScreenshotter struct {
	opts BrowserOptions
	log  *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewRodScreenshotter creates a screenshotter; no browser is started yet.
func NewRodScreenshotter(opts BrowserOptions) *RodScreenshotter {
	if opts.Width <= 0 {
		opts.Width = 1920
	}
	if opts.Height <= 0 {
		opts.Height = 1080
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 60 * time.Second
	}
	return &RodScreenshotter{
		opts: opts,
		log:  zap.L().With(zap.String("component", "browser")),
	}
}

func (s *RodScreenshotter) connect() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}

	wsURL := s.opts.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(s.opts.Headless)
		if s.opts.Bin != "" {
			l = l.Bin(s.opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, eris.Wrap(err, "render: launch browser")
		}
		wsURL = u
		s.lnch = l
		s.log.Info("launched local browser", zap.String("url", wsURL))
	} else {
		s.log.Info("connecting to remote browser", zap.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanupLocked()
		return nil, eris.Wrap(err, "render: connect browser")
	}
	s.browser = b
	return b, nil
}

// Screenshot opens pageURL, waits for load plus the settle delay and writes
// the viewport to out.
func (s *RodScreenshotter) Screenshot(ctx context.Context, pageURL, out string) error {
	b, err := s.connect()
	if err != nil {
		return err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return eris.Wrap(err, "render: create tab")
	}
	defer func() { _ = page.Close() }()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.Width,
		Height:            s.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return eris.Wrap(err, "render: set viewport")
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return eris.Wrapf(err, "render: navigate %s", pageURL)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.log.Warn("wait load timeout", zap.String("url", pageURL), zap.Error(err))
	}

	// Tiles load asynchronously after the load event; there is no ready
	// signal, so wait a fixed time.
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "render: screenshot cancelled")
	case <-time.After(s.opts.Settle):
	}

	img, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return eris.Wrapf(err, "render: screenshot %s", pageURL)
	}
	if err := os.WriteFile(out, img, 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", out)
	}
	return nil
}

// Close shuts the browser down.
func (s *RodScreenshotter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	return nil
}

func (s *RodScreenshotter) cleanupLocked() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.log.Debug("close browser", zap.Error(err))
		}
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}

// Package capture renders the /grid page of a running server to a PNG with a
// headless Chromium driven by chromedp.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	appLog "monthgrid/internal/log"
)

const (
	DefaultWidth   = 600
	DefaultHeight  = 480
	DefaultTimeout = 30 * time.Second
)

// Options defines one grid snapshot.
type Options struct {
	// BaseURL of the server, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// Section to render; negative renders the displayed month.
	Section int

	// Username and Password are sent as basic auth when Username is set.
	Username string
	Password string

	OutputPath string
	Width      int
	Height     int
	Timeout    time.Duration
}

// GridURL returns the page address for o.
func GridURL(o Options) (string, error) {
	if o.BaseURL == "" {
		return "", errors.New("capture: BaseURL is required")
	}
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return "", fmt.Errorf("capture: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("capture: unsupported scheme %q", u.Scheme)
	}
	u = u.JoinPath("grid")
	if o.Section >= 0 {
		q := u.Query()
		q.Set("section", strconv.Itoa(o.Section))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (o *Options) applyDefaults() error {
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// CaptureGridPNG navigates to the grid page, waits for its
// `[data-ready="true"]` root and writes a screenshot to o.OutputPath.
func CaptureGridPNG(parent context.Context, o Options) error {
	if err := o.applyDefaults(); err != nil {
		return err
	}
	target, err := GridURL(o)
	if err != nil {
		return err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent,
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox)...)
	defer allocCancel()
	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, o.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(o.Width), int64(o.Height)),
	}
	if o.Username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(o.Username + ":" + o.Password))
		tasks = append(tasks,
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}),
		)
	}
	tasks = append(tasks,
		chromedp.Navigate(target),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		chromedp.Screenshot(`#grid`, &png, chromedp.ByID),
	)

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	if err := writeFileAtomic(o.OutputPath, png); err != nil {
		return fmt.Errorf("capture: write png: %w", err)
	}
	appLog.Info("grid snapshot written",
		"url", target,
		"path", o.OutputPath,
		"bytes", len(png),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

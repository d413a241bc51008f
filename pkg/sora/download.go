package sora

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/theanhybdz2k4/new-sora/pkg/browser"
	"github.com/theanhybdz2k4/new-sora/pkg/logging"
	"github.com/theanhybdz2k4/new-sora/pkg/pool"
)

// partialSuffixes are in-progress download artifacts the watcher must skip.
var partialSuffixes = []string{".crdownload", ".tmp", ".part", ".download"}

// download retrieves the generated media. The browser's download button is
// the primary path, observed through a directory watcher; if the button or
// the watched file never materializes, the media element's source URL is
// fetched directly.
func (a *Automation) download(ctx context.Context, task *pool.Task, startedAt time.Time) (string, error) {
	outputPath := task.OutputPath
	if outputPath == "" {
		outputPath = a.deriveOutputPath(task.Kind, task.ID)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	if path, err := a.downloadViaButton(ctx, task, outputPath); err == nil {
		return path, nil
	} else {
		a.log(logging.LevelWarn, "download_button_failed", err.Error())
	}

	return a.downloadViaSource(ctx, task.Kind, outputPath)
}

// deriveOutputPath builds a timestamped name in the output directory. The
// row number keeps concurrent slots finishing in the same second from
// deriving the same path.
func (a *Automation) deriveOutputPath(kind string, taskID int) string {
	ext := ".png"
	if kind == "video" {
		ext = ".mp4"
	}
	name := fmt.Sprintf("sora_%s_row%d%s", time.Now().Format("20060102_150405"), taskID, ext)
	return filepath.Join(a.settings.OutputDir, name)
}

// downloadViaButton clicks the page's download control and waits for the
// file to land in the session's download directory, then moves it to the
// output path.
func (a *Automation) downloadViaButton(ctx context.Context, task *pool.Task, outputPath string) (string, error) {
	if a.downloadDir == "" {
		return "", fmt.Errorf("no download directory configured")
	}
	btn, err := browser.WaitFor(ctx, a.sess, a.sel("download_button"), a.controlWait)
	if err != nil {
		return "", fmt.Errorf("download button not found: %w", err)
	}

	// The watcher starts before the click so the file event cannot be missed.
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	type watchResult struct {
		path string
		err  error
	}
	watched := make(chan watchResult, 1)
	go func() {
		p, err := waitForFile(watchCtx, a.downloadDir, a.settings.Timeouts.Download)
		watched <- watchResult{p, err}
	}()

	if err := btn.Click(ctx); err != nil {
		return "", fmt.Errorf("download click failed: %w", err)
	}

	// Some revisions present a format menu after the button.
	optionKey := "download_image_option"
	if task.Kind == "video" {
		optionKey = "download_video_option"
	}
	if opt, err := browser.WaitFor(ctx, a.sess, a.sel(optionKey), a.optionWait); err == nil {
		_ = opt.Click(ctx)
	}

	res := <-watched
	if res.err != nil {
		return "", res.err
	}
	if err := os.Rename(res.path, outputPath); err != nil {
		return "", fmt.Errorf("move download: %w", err)
	}
	return outputPath, nil
}

// downloadViaSource reads the media element's src attribute and streams it
// over HTTP.
func (a *Automation) downloadViaSource(ctx context.Context, kind, outputPath string) (string, error) {
	mediaSel := browser.CSS("img")
	if kind == "video" {
		mediaSel = browser.CSS("video")
	}
	el, err := browser.WaitFor(ctx, a.sess, mediaSel, a.controlWait)
	if err != nil {
		return "", fmt.Errorf("media element not found: %w", err)
	}
	src, err := el.Attribute(ctx, "src")
	if err != nil || src == "" {
		return "", fmt.Errorf("media element has no source")
	}
	if err := fetchToFile(ctx, src, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// copyBuffers recycles 64KB buffers for media streaming, so concurrent
// slot downloads do not each allocate fresh copy buffers.
var copyBuffers = sync.Pool{
	New: func() any {
		b := make([]byte, 64*1024)
		return &b
	},
}

// fetchToFile streams a URL to a local path.
func fetchToFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch media: status %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	buf := copyBuffers.Get().(*[]byte)
	defer copyBuffers.Put(buf)
	if _, err := io.CopyBuffer(f, resp.Body, *buf); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

// waitForFile blocks until a completed file appears in dir. Partial download
// artifacts are ignored; the final name arrives as a create or rename event
// when the browser finishes.
func waitForFile(ctx context.Context, dir string, timeout time.Duration) (string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return "", fmt.Errorf("watch %s: %w", dir, err)
	}

	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return "", fmt.Errorf("watcher closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if isPartialDownload(ev.Name) {
				continue
			}
			if err := waitStable(ctx, ev.Name); err != nil {
				continue
			}
			return ev.Name, nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return "", fmt.Errorf("watcher closed")
			}
			return "", fmt.Errorf("watch error: %w", err)
		case <-deadline:
			return "", fmt.Errorf("download timed out after %s", timeout)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func isPartialDownload(name string) bool {
	lowered := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lowered, suffix) {
			return true
		}
	}
	return false
}

// waitStable returns once the file's size stops changing between two probes.
func waitStable(ctx context.Context, path string) error {
	var lastSize int64 = -1
	for i := 0; i < 20; i++ {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == lastSize {
			return nil
		}
		lastSize = info.Size()
		select {
		case <-time.After(250 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("file %s never settled", path)
}

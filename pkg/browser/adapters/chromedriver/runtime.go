package chromedriver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/theanhybdz2k4/new-sora/pkg/browser"
)

// Runtime launches one chromedriver process and serves browser sessions from
// it. chromedriver multiplexes independent sessions over a single endpoint,
// so one process covers the whole pool.
type Runtime struct {
	cfg    Config
	client *client

	mu       sync.Mutex
	cmd      *exec.Cmd
	waitDone chan struct{}
	closed   bool
}

// NewRuntime starts chromedriver and waits for it to accept requests.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		p, err := freePort()
		if err != nil {
			return nil, fmt.Errorf("pick chromedriver port: %w", err)
		}
		port = p
	}

	cmd := exec.Command(cfg.ChromedriverPath, "--port="+strconv.Itoa(port))
	if err := cmd.Start(); err != nil {
		return nil, browser.WrapDriverError("unavailable", "start chromedriver", err)
	}

	r := &Runtime{
		cfg:      cfg,
		client:   newClient("http://127.0.0.1:" + strconv.Itoa(port)),
		cmd:      cmd,
		waitDone: make(chan struct{}),
	}
	go func() {
		cmd.Wait()
		close(r.waitDone)
	}()

	if err := r.awaitReady(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func (r *Runtime) awaitReady(ctx context.Context) error {
	deadline := time.Now().Add(r.cfg.ConnectTimeout)
	for {
		ready, err := r.client.status(ctx)
		if err == nil && ready {
			return nil
		}
		if time.Now().After(deadline) {
			return browser.WrapDriverError("unavailable", "chromedriver not ready", browser.ErrOperationTimeout)
		}
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.waitDone:
			return browser.NewDriverError("unavailable", "chromedriver exited during startup")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// NewSession creates a WebDriver session with a persistent profile.
func (r *Runtime) NewSession(ctx context.Context, cfg browser.SessionConfig) (browser.Session, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, browser.ErrUnavailable
	}
	r.mu.Unlock()

	args := []string{
		"--no-first-run",
		"--disable-notifications",
	}
	if cfg.ProfileDir != "" {
		args = append(args, "--user-data-dir="+cfg.ProfileDir)
	}
	if cfg.Headless {
		args = append(args, "--headless=new")
	}
	if cfg.UserAgent != "" {
		args = append(args, "--user-agent="+cfg.UserAgent)
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		args = append(args, fmt.Sprintf("--window-size=%d,%d", cfg.WindowWidth, cfg.WindowHeight))
	}

	chromeOptions := map[string]any{"args": args}
	if cfg.DownloadDir != "" {
		chromeOptions["prefs"] = map[string]any{
			"download.default_directory":   cfg.DownloadDir,
			"download.prompt_for_download": false,
		}
	}

	body := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": map[string]any{
				"browserName":             "chrome",
				"goog:chromeOptions":      chromeOptions,
				"unhandledPromptBehavior": "dismiss",
			},
		},
	}

	opCtx, cancel := context.WithTimeout(ctx, r.cfg.ConnectTimeout)
	defer cancel()

	var value struct {
		SessionID string `json:"sessionId"`
	}
	if err := r.client.do(opCtx, http.MethodPost, "/session", body, &value); err != nil {
		return nil, browser.WrapDriverError("session_create", "create webdriver session", err)
	}
	if value.SessionID == "" {
		return nil, browser.NewDriverError("invalid_response", "empty session id")
	}

	sess := &Session{
		id:               cfg.SessionID,
		wireID:           value.SessionID,
		client:           r.client,
		operationTimeout: r.cfg.OperationTimeout,
	}
	if cfg.PageLoadTimeout > 0 {
		timeoutCtx, cancelTimeouts := context.WithTimeout(ctx, r.cfg.OperationTimeout)
		defer cancelTimeouts()
		// Best effort: a driver that rejects the timeout call still works.
		_ = r.client.do(timeoutCtx, http.MethodPost, "/session/"+value.SessionID+"/timeouts",
			map[string]any{"pageLoad": cfg.PageLoadTimeout.Milliseconds()}, nil)
	}
	return sess, nil
}

// Close terminates the chromedriver process.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cmd := r.cmd
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		return browser.WrapDriverError("shutdown", "kill chromedriver", err)
	}
	select {
	case <-r.waitDone:
	case <-time.After(5 * time.Second):
	}
	return nil
}

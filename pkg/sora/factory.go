// Package sora drives the content generation web UI through a browser
// session: login detection, prompt entry, generation option setup, and
// retrieval of the produced media. It implements the pool driver contract;
// the pool decides when, this package decides how.
package sora

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/theanhybdz2k4/new-sora/pkg/browser"
	"github.com/theanhybdz2k4/new-sora/pkg/config"
	"github.com/theanhybdz2k4/new-sora/pkg/logging"
	"github.com/theanhybdz2k4/new-sora/pkg/pool"
)

// Factory opens one Automation per pool slot. Each slot gets its own
// persistent profile directory, so cookies and login state survive between
// runs, and its own download directory, so concurrent downloads never
// collide.
type Factory struct {
	manager  *browser.Manager
	settings config.Settings
	logger   *logging.Logger
}

// NewFactory creates a driver factory over the given session manager.
func NewFactory(manager *browser.Manager, settings config.Settings, logger *logging.Logger) *Factory {
	return &Factory{manager: manager, settings: settings, logger: logger}
}

// Open creates the slot's browser session and wraps it in an Automation.
func (f *Factory) Open(ctx context.Context, slot int) (pool.Driver, error) {
	profile := fmt.Sprintf("profile_%d", slot)
	downloadDir := filepath.Join(f.settings.OutputDir, "downloads", profile)
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	cfg := browser.DefaultSessionConfig()
	cfg.SessionID = profile
	cfg.ProfileDir = filepath.Join(f.settings.ProfilesDir, profile)
	cfg.DownloadDir = downloadDir
	cfg.Headless = f.settings.Headless
	cfg.PageLoadTimeout = f.settings.Timeouts.PageLoad

	sess, err := f.manager.CreateSession(ctx, slot, cfg)
	if err != nil {
		return nil, err
	}

	a := NewAutomation(sess, f.settings, f.logger, slot)
	a.downloadDir = downloadDir
	a.closeFn = func() error { return f.manager.CloseSession(slot) }
	return a, nil
}

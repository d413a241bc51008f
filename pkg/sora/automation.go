package sora

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theanhybdz2k4/new-sora/pkg/browser"
	"github.com/theanhybdz2k4/new-sora/pkg/config"
	"github.com/theanhybdz2k4/new-sora/pkg/logging"
	"github.com/theanhybdz2k4/new-sora/pkg/pool"
)

// loginURLMarkers are URL fragments that indicate the session landed on an
// authentication page instead of the app.
var loginURLMarkers = []string{"login", "auth", "signin", "sign-in"}

// Automation drives one browser session through the generation workflow.
// It is owned by a single pool worker and never shared.
type Automation struct {
	sess     browser.Session
	settings config.Settings
	logger   *logging.Logger
	slot     int

	downloadDir string
	closeFn     func() error

	// authCheckWait bounds the logged-in indicator probe; generationPoll is
	// the progress re-check cadence; controlWait and optionWait bound waits
	// for primary controls and transient menus. All are shortened in tests.
	authCheckWait  time.Duration
	generationPoll time.Duration
	controlWait    time.Duration
	optionWait     time.Duration
}

// NewAutomation wraps an existing session. Callers that obtained the session
// from a Factory should close through the returned driver, not the session.
func NewAutomation(sess browser.Session, settings config.Settings, logger *logging.Logger, slot int) *Automation {
	return &Automation{
		sess:           sess,
		settings:       settings,
		logger:         logger,
		slot:           slot,
		authCheckWait:  5 * time.Second,
		generationPoll: 2 * time.Second,
		controlWait:    10 * time.Second,
		optionWait:     3 * time.Second,
	}
}

func (a *Automation) sel(key string) browser.Selector {
	return browser.CSS(a.settings.Selectors[key])
}

// Navigate loads the generation app.
func (a *Automation) Navigate(ctx context.Context) error {
	return a.sess.Navigate(ctx, a.settings.SoraURL)
}

// Authenticated reports whether the session is logged in: the URL must not
// be an auth page and the prompt input must be reachable.
func (a *Automation) Authenticated(ctx context.Context) (bool, error) {
	url, err := a.sess.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	lowered := strings.ToLower(url)
	for _, marker := range loginURLMarkers {
		if strings.Contains(lowered, marker) {
			return false, nil
		}
	}

	if _, err := browser.WaitFor(ctx, a.sess, a.sel("prompt_input"), a.authCheckWait); err != nil {
		return false, nil
	}
	return true, nil
}

// EnsureLegacyInterface switches the page to the legacy UI when the switch
// is offered. The check is deliberately lenient: the menu and switch are
// transient UI that newer accounts never see, so any ambiguity counts as
// already being on the right interface.
func (a *Automation) EnsureLegacyInterface(ctx context.Context) bool {
	menu, err := a.sess.Find(ctx, a.sel("menu_button"))
	if err != nil {
		return true
	}
	if err := menu.Click(ctx); err != nil {
		return true
	}

	sw, err := browser.WaitFor(ctx, a.sess, a.sel("switch_legacy"), a.optionWait)
	if err != nil {
		return true
	}
	if err := sw.Click(ctx); err != nil {
		return true
	}
	a.log(logging.LevelInfo, "legacy_switch", "switched to legacy interface")

	// The switch reloads the page.
	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
	}
	return true
}

// RunWorkflow executes one task end to end. Failures come back in the
// result; the session stays usable for the slot's next task.
func (a *Automation) RunWorkflow(ctx context.Context, task *pool.Task) *pool.TaskResult {
	fail := func(format string, args ...any) *pool.TaskResult {
		msg := fmt.Sprintf(format, args...)
		a.log(logging.LevelError, "task_failed", msg)
		return &pool.TaskResult{TaskID: task.ID, Succeeded: false, Message: msg}
	}

	a.EnsureLegacyInterface(ctx)

	if task.ImagePath != "" {
		a.uploadImages(ctx, task.ImagePath)
	}

	if err := a.enterPrompt(ctx, task.Prompt); err != nil {
		return fail("prompt entry failed: %v", err)
	}

	a.applyOptions(ctx, task)

	if err := a.clickGenerate(ctx); err != nil {
		return fail("generate click failed: %v", err)
	}
	startedAt := time.Now()

	if err := a.waitForGeneration(ctx); err != nil {
		return fail("generation failed: %v", err)
	}

	path, err := a.download(ctx, task, startedAt)
	if err != nil {
		return fail("download failed: %v", err)
	}

	a.log(logging.LevelInfo, "task_done", path)
	return &pool.TaskResult{TaskID: task.ID, Succeeded: true, Message: "completed", ProducedPath: path}
}

// enterPrompt clears the input and types the task prompt.
func (a *Automation) enterPrompt(ctx context.Context, prompt string) error {
	input, err := browser.WaitFor(ctx, a.sess, a.sel("prompt_input"), a.settings.Timeouts.Element)
	if err != nil {
		return fmt.Errorf("prompt input not found: %w", err)
	}
	if err := input.Clear(ctx); err != nil {
		return err
	}
	return input.Type(ctx, prompt)
}

// uploadImages attaches reference images. Names are comma-separated and
// resolved against ImageDir unless absolute. Missing files are skipped with
// a log entry; they never fail the task.
func (a *Automation) uploadImages(ctx context.Context, imageSpec string) {
	var paths []string
	for _, name := range strings.Split(imageSpec, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.settings.ImageDir, name)
		}
		if _, err := os.Stat(path); err != nil {
			a.log(logging.LevelWarn, "image_missing", path)
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return
	}

	input, err := a.fileInput(ctx)
	if err != nil {
		a.log(logging.LevelWarn, "upload_unavailable", err.Error())
		return
	}
	for _, path := range paths {
		if err := input.Upload(ctx, path); err != nil {
			a.log(logging.LevelWarn, "upload_failed", fmt.Sprintf("%s: %v", path, err))
		}
	}
}

// fileInput locates the hidden file input, opening the attach menu first if
// the input is not already in the DOM.
func (a *Automation) fileInput(ctx context.Context) (browser.Element, error) {
	if input, err := a.sess.Find(ctx, a.sel("file_input")); err == nil {
		return input, nil
	}

	if add, err := a.sess.Find(ctx, a.sel("add_image_button")); err == nil {
		_ = add.Click(ctx)
		if opt, err := browser.WaitFor(ctx, a.sess, a.sel("upload_from_device"), a.optionWait); err == nil {
			_ = opt.Click(ctx)
		}
	}
	return browser.WaitFor(ctx, a.sess, a.sel("file_input"), a.optionWait)
}

// applyOptions sets generation type, aspect ratio, duration, and resolution.
// Options are best-effort: the pickers move around between UI revisions and a
// default rendering is preferable to a failed task.
func (a *Automation) applyOptions(ctx context.Context, task *pool.Task) {
	a.pickOption(ctx, "generation_type_selector", task.Kind)
	a.pickOption(ctx, "aspect_ratio_selector", task.AspectRatio)
	if task.Kind == "video" {
		a.pickOption(ctx, "duration_selector", task.Duration)
	}
	a.pickOption(ctx, "resolution_selector", task.Resolution)
}

// pickOption opens a picker and clicks the entry whose text matches value.
func (a *Automation) pickOption(ctx context.Context, selectorKey, value string) {
	if value == "" {
		return
	}
	picker, err := a.sess.Find(ctx, a.sel(selectorKey))
	if err != nil {
		return
	}
	if err := picker.Click(ctx); err != nil {
		return
	}

	xpath := fmt.Sprintf("//*[@role='option' or @role='menuitem'][contains(normalize-space(.), %s)]", xpathLiteral(value))
	opt, err := browser.WaitFor(ctx, a.sess, browser.XPath(xpath), a.optionWait)
	if err != nil {
		a.log(logging.LevelDebug, "option_missing", fmt.Sprintf("%s=%s", selectorKey, value))
		return
	}
	_ = opt.Click(ctx)
}

// xpathLiteral quotes a string for embedding in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `',"'",'`) + "')"
}

func (a *Automation) clickGenerate(ctx context.Context) error {
	btn, err := browser.WaitFor(ctx, a.sess, a.sel("generate_button"), a.settings.Timeouts.Element)
	if err != nil {
		return fmt.Errorf("generate button not found: %w", err)
	}
	return btn.Click(ctx)
}

// waitForGeneration polls until the in-progress indicator clears and the
// completion marker appears, bounded by the generation timeout.
func (a *Automation) waitForGeneration(ctx context.Context) error {
	deadline := time.Now().Add(a.settings.Timeouts.Generation)
	ticker := time.NewTicker(a.generationPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		generating, err := a.sess.FindAll(ctx, a.sel("generating_indicator"))
		if err == nil && len(generating) == 0 {
			if _, err := a.sess.Find(ctx, a.sel("generation_complete")); err == nil {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("generation timed out after %s", a.settings.Timeouts.Generation)
		}
	}
}

// Close releases the slot's session.
func (a *Automation) Close() error {
	if a.closeFn != nil {
		return a.closeFn()
	}
	return a.sess.Close()
}

func (a *Automation) log(level logging.Level, eventType, msg string) {
	if a.logger == nil {
		return
	}
	_ = a.logger.Log(logging.Event{
		Level:     level,
		Category:  logging.CategoryWorkflow,
		EventType: eventType,
		Slot:      a.slot,
		Message:   msg,
	})
}

// Package config holds the runtime settings for the batch generation tool:
// target URL, timeout table, UI selectors, task defaults, and directory layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultSoraURL     = "https://sora.com"
	DefaultConcurrency = 3

	DefaultKind        = "video"
	DefaultAspectRatio = "3:2"
	DefaultDuration    = "10s"
	DefaultResolution  = "720p"
	DefaultVariations  = 1
)

// Timeouts bounds every blocking wait in the workflow. No wait in the system
// may block past its entry here.
type Timeouts struct {
	PageLoad   time.Duration `yaml:"page_load"`
	Element    time.Duration `yaml:"element"`
	Generation time.Duration `yaml:"generation"`
	Download   time.Duration `yaml:"download"`
	Login      time.Duration `yaml:"login"`
	LoginPoll  time.Duration `yaml:"login_poll"`
}

// Defaults fills task cells left blank in the sheet.
type Defaults struct {
	Kind        string `yaml:"kind"`
	AspectRatio string `yaml:"aspect_ratio"`
	Duration    string `yaml:"duration"`
	Resolution  string `yaml:"resolution"`
	Variations  int    `yaml:"variations"`
}

// Settings is the complete tool configuration.
type Settings struct {
	SoraURL     string `yaml:"sora_url"`
	Headless    bool   `yaml:"headless"`
	Concurrency int    `yaml:"concurrency"`

	DataDir     string `yaml:"data_dir"`
	ProfilesDir string `yaml:"profiles_dir"`
	OutputDir   string `yaml:"output_dir"`
	ImageDir    string `yaml:"image_dir"`
	LogDir      string `yaml:"log_dir"`
	SheetPath   string `yaml:"sheet_path"`

	ChromedriverPath string `yaml:"chromedriver_path"`

	// NATSURL enables the event bridge when set (e.g. "nats://localhost:4222").
	NATSURL string `yaml:"nats_url"`

	Timeouts  Timeouts          `yaml:"timeouts"`
	Defaults  Defaults          `yaml:"defaults"`
	Selectors map[string]string `yaml:"selectors"`
}

// DefaultSettings returns the configuration used when no file is present.
func DefaultSettings() Settings {
	dataDir := "data"
	return Settings{
		SoraURL:          DefaultSoraURL,
		Concurrency:      DefaultConcurrency,
		DataDir:          dataDir,
		ProfilesDir:      filepath.Join(dataDir, "profiles"),
		OutputDir:        filepath.Join(dataDir, "output"),
		LogDir:           filepath.Join(dataDir, "logs"),
		SheetPath:        filepath.Join(dataDir, "sora.xlsx"),
		ChromedriverPath: "chromedriver",
		Timeouts: Timeouts{
			PageLoad:   60 * time.Second,
			Element:    30 * time.Second,
			Generation: 300 * time.Second,
			Download:   120 * time.Second,
			Login:      300 * time.Second,
			LoginPoll:  2 * time.Second,
		},
		Defaults: Defaults{
			Kind:        DefaultKind,
			AspectRatio: DefaultAspectRatio,
			Duration:    DefaultDuration,
			Resolution:  DefaultResolution,
			Variations:  DefaultVariations,
		},
		Selectors: DefaultSelectors(),
	}
}

// DefaultSelectors returns the selector table for the target UI. Keys are
// stable identifiers consumed by the automation layer; values are CSS.
func DefaultSelectors() map[string]string {
	return map[string]string{
		"prompt_input":             "textarea[placeholder*='prompt'], textarea[placeholder*='Describe'], div[contenteditable='true']",
		"generate_button":          "button[data-testid='generate'], button[type='submit']",
		"download_button":          "button[aria-label*='download'], button[aria-label*='Download'], [data-testid='download-button']",
		"download_video_option":    "[data-testid='download-video']",
		"download_image_option":    "[data-testid='download-image']",
		"generation_type_selector": "button[aria-label*='type'], div[data-testid='generation-type']",
		"aspect_ratio_selector":    "button[aria-label*='aspect'], div[data-testid='aspect-ratio']",
		"duration_selector":        "button[aria-label*='duration'], div[data-testid='duration']",
		"resolution_selector":      "button[aria-label*='resolution'], div[data-testid='resolution']",
		"menu_button":              "button[aria-label='More options'], button[aria-label='Menu']",
		"switch_legacy":            "[data-testid='switch-old-sora']",
		"generating_indicator":     "div[data-testid='generating']",
		"generation_complete":      "div[data-testid='complete'], video, img[data-generated='true']",
		"add_image_button":         "button[aria-label*='Add'], [data-testid='add-image']",
		"upload_from_device":       "[data-testid='upload-from-device'], button[aria-label*='Upload']",
		"file_input":               "input[type='file']",
	}
}

// Load reads settings from a YAML file. A missing file yields the defaults;
// zero-valued fields in the file fall back to their defaults.
func Load(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse config %s: %w", path, err)
	}
	s.applyDefaults()
	return s, nil
}

func (s *Settings) applyDefaults() {
	d := DefaultSettings()
	if s.SoraURL == "" {
		s.SoraURL = d.SoraURL
	}
	if s.Concurrency <= 0 {
		s.Concurrency = d.Concurrency
	}
	if s.DataDir == "" {
		s.DataDir = d.DataDir
	}
	if s.ProfilesDir == "" {
		s.ProfilesDir = filepath.Join(s.DataDir, "profiles")
	}
	if s.OutputDir == "" {
		s.OutputDir = filepath.Join(s.DataDir, "output")
	}
	if s.LogDir == "" {
		s.LogDir = filepath.Join(s.DataDir, "logs")
	}
	if s.SheetPath == "" {
		s.SheetPath = filepath.Join(s.DataDir, "sora.xlsx")
	}
	if s.ChromedriverPath == "" {
		s.ChromedriverPath = d.ChromedriverPath
	}
	if s.Timeouts.PageLoad == 0 {
		s.Timeouts.PageLoad = d.Timeouts.PageLoad
	}
	if s.Timeouts.Element == 0 {
		s.Timeouts.Element = d.Timeouts.Element
	}
	if s.Timeouts.Generation == 0 {
		s.Timeouts.Generation = d.Timeouts.Generation
	}
	if s.Timeouts.Download == 0 {
		s.Timeouts.Download = d.Timeouts.Download
	}
	if s.Timeouts.Login == 0 {
		s.Timeouts.Login = d.Timeouts.Login
	}
	if s.Timeouts.LoginPoll == 0 {
		s.Timeouts.LoginPoll = d.Timeouts.LoginPoll
	}
	if s.Defaults.Kind == "" {
		s.Defaults.Kind = d.Defaults.Kind
	}
	if s.Defaults.AspectRatio == "" {
		s.Defaults.AspectRatio = d.Defaults.AspectRatio
	}
	if s.Defaults.Duration == "" {
		s.Defaults.Duration = d.Defaults.Duration
	}
	if s.Defaults.Resolution == "" {
		s.Defaults.Resolution = d.Defaults.Resolution
	}
	if s.Defaults.Variations <= 0 {
		s.Defaults.Variations = d.Defaults.Variations
	}
	if len(s.Selectors) == 0 {
		s.Selectors = DefaultSelectors()
	} else {
		// Partial selector overrides keep the defaults for the rest.
		for k, v := range DefaultSelectors() {
			if _, ok := s.Selectors[k]; !ok {
				s.Selectors[k] = v
			}
		}
	}
}

// Validate checks whether the settings are usable.
func (s Settings) Validate() error {
	if s.SoraURL == "" {
		return fmt.Errorf("sora_url is required")
	}
	if s.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", s.Concurrency)
	}
	if s.Timeouts.LoginPoll <= 0 {
		return fmt.Errorf("login_poll must be positive")
	}
	if s.Timeouts.Login < s.Timeouts.LoginPoll {
		return fmt.Errorf("login timeout %s shorter than poll interval %s", s.Timeouts.Login, s.Timeouts.LoginPoll)
	}
	if s.Defaults.Kind != "video" && s.Defaults.Kind != "image" {
		return fmt.Errorf("default kind must be video or image, got %q", s.Defaults.Kind)
	}
	return nil
}

// EnsureDirs creates the data directories if they do not exist.
func (s Settings) EnsureDirs() error {
	for _, dir := range []string{s.DataDir, s.ProfilesDir, s.OutputDir, s.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

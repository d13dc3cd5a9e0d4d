package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/handscope/internal/boundary"
	"github.com/ayusman/handscope/internal/detector"
	"github.com/ayusman/handscope/internal/engine"
	"github.com/ayusman/handscope/internal/motion"
	"github.com/ayusman/handscope/internal/validator"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains storage locations.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	Database string `toml:"database"`
	HooksDir string `toml:"hooks_dir"`
}

// Server contains HTTP API settings.
type Server struct {
	Bind string `toml:"bind"`
}

// Engine contains per-run pipeline settings.
type Engine struct {
	// FrameStride analyses every n-th decoded frame.
	FrameStride int `toml:"frame_stride"`
}

// Motion contains background subtraction, optical flow and pattern settings.
type Motion struct {
	History          int     `toml:"history"`
	VarThreshold     float64 `toml:"var_threshold"`
	KernelSize       int     `toml:"kernel_size"`
	MinRegionArea    float64 `toml:"min_region_area"`
	FlowGridStride   int     `toml:"flow_grid_stride"`
	FlowWindow       int     `toml:"flow_window"`
	FlowLevels       int     `toml:"flow_levels"`
	FlowIterations   int     `toml:"flow_iterations"`
	FlowEpsilon      float64 `toml:"flow_epsilon"`
	MinSamples       int     `toml:"min_samples"`
	DealingWindow    int     `toml:"dealing_window"`
	CentralRadius    float64 `toml:"central_radius"`
	CollectionWindow int     `toml:"collection_window"`
	MinFlowMagnitude float64 `toml:"min_flow_magnitude"`
	MagnitudeScale   float64 `toml:"magnitude_scale"`
	MinVectors       int     `toml:"min_vectors"`
}

// Detector contains card and chip heuristic thresholds and the table layout.
type Detector struct {
	BlurSize           int                   `toml:"blur_size"`
	ThresholdBlockSize int                   `toml:"threshold_block_size"`
	ThresholdC         float64               `toml:"threshold_c"`
	ApproxEpsilon      float64               `toml:"approx_epsilon"`
	ShapeMinArea       float64               `toml:"shape_min_area"`
	ShapeMaxArea       float64               `toml:"shape_max_area"`
	ShapeConfidence    float64               `toml:"shape_confidence"`
	CardWhite          detector.ColorRange   `toml:"card_white"`
	ColorMinArea       float64               `toml:"color_min_area"`
	ColorMaxArea       float64               `toml:"color_max_area"`
	ColorConfidence    float64               `toml:"color_confidence"`
	MinAspect          float64               `toml:"min_aspect"`
	MaxAspect          float64               `toml:"max_aspect"`
	MergeDistance      float64               `toml:"merge_distance"`
	ChipColors         []detector.ColorRange `toml:"chip_colors"`
	ChipBlurSize       int                   `toml:"chip_blur_size"`
	HoughDP            float64               `toml:"hough_dp"`
	HoughMinDist       float64               `toml:"hough_min_dist"`
	HoughParam1        float64               `toml:"hough_param1"`
	HoughParam2        float64               `toml:"hough_param2"`
	MinChipRadius      int                   `toml:"min_chip_radius"`
	MaxChipRadius      int                   `toml:"max_chip_radius"`
	ChipConfidence     float64               `toml:"chip_confidence"`
	Layout             detector.Layout       `toml:"layout"`
}

// Boundary contains the hand-start and hand-end scoring tables.
type Boundary struct {
	StartThreshold      float64 `toml:"start_threshold"`
	EndThreshold        float64 `toml:"end_threshold"`
	MinHandDuration     float64 `toml:"min_hand_duration"`
	NewCardsPoints      float64 `toml:"new_cards_points"`
	NewCardsDelta       float64 `toml:"new_cards_delta"`
	CardHistorySize     int     `toml:"card_history_size"`
	CardHistoryMin      int     `toml:"card_history_min"`
	CardPriorWindow     int     `toml:"card_prior_window"`
	DealingPoints       float64 `toml:"dealing_points"`
	DealingThreshold    float64 `toml:"dealing_threshold"`
	DealingStreak       int     `toml:"dealing_streak"`
	GapPoints           float64 `toml:"gap_points"`
	GapMin              float64 `toml:"gap_min"`
	GapMax              float64 `toml:"gap_max"`
	ShortGapPoints      float64 `toml:"short_gap_points"`
	ShortGapMin         float64 `toml:"short_gap_min"`
	FirstHandGap        float64 `toml:"first_hand_gap"`
	ActivityPoints      float64 `toml:"activity_points"`
	ActivityArea        float64 `toml:"activity_area"`
	CollectionPoints    float64 `toml:"collection_points"`
	CollectionThreshold float64 `toml:"collection_threshold"`
	CollectionStreak    int     `toml:"collection_streak"`
	PotClearedPoints    float64 `toml:"pot_cleared_points"`
	ActivityDropPoints  float64 `toml:"activity_drop_points"`
	ActivityDropArea    float64 `toml:"activity_drop_area"`
}

// Validator contains the plausibility bounds for finished hands.
type Validator struct {
	MinDuration   float64 `toml:"min_duration"`
	MaxDuration   float64 `toml:"max_duration"`
	MinConfidence float64 `toml:"min_confidence"`
}

// Hooks contains settings for external hand notification hooks.
type Hooks struct {
	Enabled        bool `toml:"enabled"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for handscope.
//
// Configuration sections by subsystem:
//   - Paths: data directory, database file and hooks directory
//   - Server: HTTP API bind address
//   - Engine: frame sampling
//   - Motion: background subtraction, optical flow and gesture patterns
//   - Detector: card and chip heuristics and table regions
//   - Boundary: hand-start and hand-end scoring
//   - Validator: duration and confidence bounds
//   - Hooks: external notification executables
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Server    Server    `toml:"server"`
	Engine    Engine    `toml:"engine"`
	Motion    Motion    `toml:"motion"`
	Detector  Detector  `toml:"detector"`
	Boundary  Boundary  `toml:"boundary"`
	Validator Validator `toml:"validator"`
	Hooks     Hooks     `toml:"hooks"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/handscope/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// yields the defaults. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("handscope.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and hooks directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.HooksDir, filepath.Dir(c.Paths.Database)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// HookTimeout returns the per-hook execution timeout.
func (c *Config) HookTimeout() time.Duration {
	return time.Duration(c.Hooks.TimeoutSeconds) * time.Second
}

// MotionConfig returns the motion tracker configuration.
func (c *Config) MotionConfig() motion.Config {
	m := c.Motion
	return motion.Config{
		History:          m.History,
		VarThreshold:     m.VarThreshold,
		KernelSize:       m.KernelSize,
		MinRegionArea:    m.MinRegionArea,
		FlowGridStride:   m.FlowGridStride,
		FlowWindow:       m.FlowWindow,
		FlowLevels:       m.FlowLevels,
		FlowIterations:   m.FlowIterations,
		FlowEpsilon:      m.FlowEpsilon,
		MinSamples:       m.MinSamples,
		DealingWindow:    m.DealingWindow,
		CentralRadius:    m.CentralRadius,
		CollectionWindow: m.CollectionWindow,
		MinFlowMagnitude: m.MinFlowMagnitude,
		MagnitudeScale:   m.MagnitudeScale,
		MinVectors:       m.MinVectors,
	}
}

// DetectorConfig returns the object detector configuration.
func (c *Config) DetectorConfig() detector.Config {
	d := c.Detector
	return detector.Config{
		BlurSize:           d.BlurSize,
		ThresholdBlockSize: d.ThresholdBlockSize,
		ThresholdC:         float32(d.ThresholdC),
		ApproxEpsilon:      d.ApproxEpsilon,
		ShapeMinArea:       d.ShapeMinArea,
		ShapeMaxArea:       d.ShapeMaxArea,
		ShapeConfidence:    d.ShapeConfidence,
		CardWhite:          d.CardWhite,
		ColorMinArea:       d.ColorMinArea,
		ColorMaxArea:       d.ColorMaxArea,
		ColorConfidence:    d.ColorConfidence,
		MinAspect:          d.MinAspect,
		MaxAspect:          d.MaxAspect,
		MergeDistance:      d.MergeDistance,
		ChipColors:         append([]detector.ColorRange(nil), d.ChipColors...),
		ChipBlurSize:       d.ChipBlurSize,
		HoughDP:            d.HoughDP,
		HoughMinDist:       d.HoughMinDist,
		HoughParam1:        d.HoughParam1,
		HoughParam2:        d.HoughParam2,
		MinChipRadius:      d.MinChipRadius,
		MaxChipRadius:      d.MaxChipRadius,
		ChipConfidence:     d.ChipConfidence,
		Layout:             d.Layout,
	}
}

// BoundaryConfig returns the state machine configuration.
func (c *Config) BoundaryConfig() boundary.Config {
	return boundary.Config(c.Boundary)
}

// ValidatorConfig returns the hand validator configuration.
func (c *Config) ValidatorConfig() validator.Config {
	return validator.Config(c.Validator)
}

// EngineConfig assembles the configuration of every pipeline stage.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Motion:      c.MotionConfig(),
		Detector:    c.DetectorConfig(),
		Boundary:    c.BoundaryConfig(),
		Validator:   c.ValidatorConfig(),
		FrameStride: c.Engine.FrameStride,
	}
}

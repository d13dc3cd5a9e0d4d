package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMotion(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateBoundary(); err != nil {
		return err
	}
	if err := c.validateValidator(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMotion() error {
	m := c.Motion
	if m.History <= 0 {
		return errors.New("motion.history must be positive")
	}
	if m.KernelSize <= 0 || m.FlowGridStride <= 0 || m.FlowWindow <= 0 {
		return errors.New("motion.kernel_size, motion.flow_grid_stride and motion.flow_window must be positive")
	}
	if m.FlowLevels < 0 || m.FlowIterations <= 0 {
		return errors.New("motion.flow_levels must not be negative and motion.flow_iterations must be positive")
	}
	if m.MinSamples <= 0 || m.DealingWindow <= 0 || m.CollectionWindow <= 0 {
		return errors.New("motion sample windows must be positive")
	}
	if m.CentralRadius <= 0 || m.CentralRadius > 1 {
		return errors.New("motion.central_radius must be within (0, 1]")
	}
	if m.MagnitudeScale <= 0 {
		return errors.New("motion.magnitude_scale must be positive")
	}
	return nil
}

func (c *Config) validateDetector() error {
	d := c.Detector
	if d.ThresholdBlockSize < 3 || d.ThresholdBlockSize%2 == 0 {
		return fmt.Errorf("detector.threshold_block_size must be an odd number >= 3, got %d", d.ThresholdBlockSize)
	}
	if d.ShapeMinArea <= 0 || d.ShapeMinArea > d.ShapeMaxArea {
		return errors.New("detector.shape_min_area must be positive and not exceed detector.shape_max_area")
	}
	if d.ColorMinArea <= 0 || d.ColorMinArea > d.ColorMaxArea {
		return errors.New("detector.color_min_area must be positive and not exceed detector.color_max_area")
	}
	if d.MinAspect < 1 || d.MinAspect > d.MaxAspect {
		return errors.New("detector.min_aspect must be at least 1 and not exceed detector.max_aspect")
	}
	if d.MinChipRadius <= 0 || d.MinChipRadius > d.MaxChipRadius {
		return errors.New("detector.min_chip_radius must be positive and not exceed detector.max_chip_radius")
	}
	if len(d.ChipColors) == 0 {
		return errors.New("detector.chip_colors must list at least one colour range")
	}
	for _, cr := range d.ChipColors {
		if cr.Name == "" {
			return errors.New("detector.chip_colors entries need a name")
		}
	}
	pot := d.Layout.Pot
	if pot.X0 < 0 || pot.Y0 < 0 || pot.X1 > 1 || pot.Y1 > 1 || pot.X0 >= pot.X1 || pot.Y0 >= pot.Y1 {
		return errors.New("detector.layout.pot must be a non-empty box within [0, 1]")
	}
	return nil
}

func (c *Config) validateBoundary() error {
	b := c.Boundary
	if b.StartThreshold <= 0 || b.EndThreshold <= 0 {
		return errors.New("boundary thresholds must be positive")
	}
	if b.MinHandDuration < 0 {
		return errors.New("boundary.min_hand_duration must not be negative")
	}
	if b.CardHistoryMin < 2 || b.CardPriorWindow < 1 {
		return errors.New("boundary.card_history_min must be at least 2 and boundary.card_prior_window at least 1")
	}
	if b.DealingStreak < 1 || b.CollectionStreak < 1 {
		return errors.New("boundary streak lengths must be at least 1")
	}
	if b.GapMin > b.GapMax {
		return errors.New("boundary.gap_min must not exceed boundary.gap_max")
	}
	return nil
}

func (c *Config) validateValidator() error {
	v := c.Validator
	if v.MinDuration < 0 || v.MinDuration > v.MaxDuration {
		return errors.New("validator.min_duration must not be negative or exceed validator.max_duration")
	}
	if v.MinConfidence < 0 || v.MinConfidence > 100 {
		return errors.New("validator.min_confidence must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDetection() error {
	d := c.Detection
	switch d.Mode {
	case DetectionModeAdaptive, DetectionModeFixed:
	default:
		return fmt.Errorf("detection.mode must be %q or %q, got %q", DetectionModeAdaptive, DetectionModeFixed, d.Mode)
	}
	if d.Threshold <= 0 {
		return errors.New("detection.threshold must be positive")
	}
	if d.Mode != DetectionModeAdaptive {
		return nil
	}
	if err := ensurePositiveMap(map[string]int{
		"detection.target_scenes":  d.TargetScenes,
		"detection.max_iterations": d.MaxIterations,
	}); err != nil {
		return err
	}
	if d.Tolerance < 0 {
		return errors.New("detection.tolerance must be >= 0")
	}
	if d.SearchLow < 0 {
		return errors.New("detection.search_low must be >= 0")
	}
	if d.SearchLow >= d.SearchHigh {
		return errors.New("detection.search_low must be less than detection.search_high")
	}
	return nil
}

func (c *Config) validateQuality() error {
	q := c.Quality
	if q.BlurThreshold < 0 {
		return errors.New("quality.blur_threshold must be >= 0")
	}
	for key, value := range map[string]float64{
		"quality.fade_black_threshold": q.FadeBlackThreshold,
		"quality.fade_white_threshold": q.FadeWhiteThreshold,
	} {
		if value < 0 || value > 255 {
			return fmt.Errorf("%s must be between 0 and 255", key)
		}
	}
	if q.FadeStdThreshold < 0 {
		return errors.New("quality.fade_std_threshold must be >= 0")
	}
	if q.DedupHashDistance < 0 || q.DedupHashDistance > 64 {
		return errors.New("quality.dedup_hash_distance must be between 0 and 64")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return errors.New("output.jpeg_quality must be between 1 and 100")
	}
	if c.Output.ContactSheetColumns < 1 {
		return errors.New("output.contact_sheet_columns must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

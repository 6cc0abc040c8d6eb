package config

// Detection modes.
const (
	DetectionModeAdaptive = "adaptive"
	DetectionModeFixed    = "fixed"
)

const (
	defaultOutputDir           = "data/output"
	defaultLogDir              = "~/.local/share/keyframer/logs"
	defaultStateDir            = "~/.local/share/keyframer"
	defaultDetectionMode       = DetectionModeAdaptive
	defaultSceneThreshold      = 27.0
	defaultMinSceneLength      = 15
	defaultTargetScenes        = 40
	defaultSceneTolerance      = 5
	defaultSearchIterations    = 7
	defaultSearchLow           = 15.0
	defaultSearchHigh          = 50.0
	defaultBlurThreshold       = 100.0
	defaultFadeBlackThreshold  = 25.0
	defaultFadeWhiteThreshold  = 230.0
	defaultFadeStdThreshold    = 15.0
	defaultDedupHashDistance   = 5
	defaultJPEGQuality         = 95
	defaultContactSheetColumns = 5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Detection: Detection{
			Mode:           defaultDetectionMode,
			Threshold:      defaultSceneThreshold,
			MinSceneLength: defaultMinSceneLength,
			TargetScenes:   defaultTargetScenes,
			Tolerance:      defaultSceneTolerance,
			MaxIterations:  defaultSearchIterations,
			SearchLow:      defaultSearchLow,
			SearchHigh:     defaultSearchHigh,
		},
		Quality: Quality{
			BlurThreshold:      defaultBlurThreshold,
			FadeBlackThreshold: defaultFadeBlackThreshold,
			FadeWhiteThreshold: defaultFadeWhiteThreshold,
			FadeStdThreshold:   defaultFadeStdThreshold,
			DedupHashDistance:  defaultDedupHashDistance,
		},
		Output: Output{
			JPEGQuality:         defaultJPEGQuality,
			ContactSheet:        true,
			ContactSheetColumns: defaultContactSheetColumns,
			HTMLReport:          true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

import (
	"github.com/ayusman/handscope/internal/boundary"
	"github.com/ayusman/handscope/internal/detector"
	"github.com/ayusman/handscope/internal/motion"
	"github.com/ayusman/handscope/internal/validator"
)

const (
	defaultDataDir      = "~/.local/share/handscope"
	defaultDatabaseName = "handscope.db"
	defaultHooksDirName = "hooks"
	defaultServerBind   = "127.0.0.1:7734"
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
	defaultHookTimeout  = 10
	defaultFrameStride  = 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	m := motion.DefaultConfig()
	d := detector.DefaultConfig()
	b := boundary.DefaultConfig()
	v := validator.DefaultConfig()

	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Engine: Engine{
			FrameStride: defaultFrameStride,
		},
		Motion: Motion{
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
		},
		Detector: Detector{
			BlurSize:           d.BlurSize,
			ThresholdBlockSize: d.ThresholdBlockSize,
			ThresholdC:         float64(d.ThresholdC),
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
			ChipColors:         d.ChipColors,
			ChipBlurSize:       d.ChipBlurSize,
			HoughDP:            d.HoughDP,
			HoughMinDist:       d.HoughMinDist,
			HoughParam1:        d.HoughParam1,
			HoughParam2:        d.HoughParam2,
			MinChipRadius:      d.MinChipRadius,
			MaxChipRadius:      d.MaxChipRadius,
			ChipConfidence:     d.ChipConfidence,
			Layout:             d.Layout,
		},
		Boundary: Boundary{
			StartThreshold:      b.StartThreshold,
			EndThreshold:        b.EndThreshold,
			MinHandDuration:     b.MinHandDuration,
			NewCardsPoints:      b.NewCardsPoints,
			NewCardsDelta:       b.NewCardsDelta,
			CardHistorySize:     b.CardHistorySize,
			CardHistoryMin:      b.CardHistoryMin,
			CardPriorWindow:     b.CardPriorWindow,
			DealingPoints:       b.DealingPoints,
			DealingThreshold:    b.DealingThreshold,
			DealingStreak:       b.DealingStreak,
			GapPoints:           b.GapPoints,
			GapMin:              b.GapMin,
			GapMax:              b.GapMax,
			ShortGapPoints:      b.ShortGapPoints,
			ShortGapMin:         b.ShortGapMin,
			FirstHandGap:        b.FirstHandGap,
			ActivityPoints:      b.ActivityPoints,
			ActivityArea:        b.ActivityArea,
			CollectionPoints:    b.CollectionPoints,
			CollectionThreshold: b.CollectionThreshold,
			CollectionStreak:    b.CollectionStreak,
			PotClearedPoints:    b.PotClearedPoints,
			ActivityDropPoints:  b.ActivityDropPoints,
			ActivityDropArea:    b.ActivityDropArea,
		},
		Validator: Validator{
			MinDuration:   v.MinDuration,
			MaxDuration:   v.MaxDuration,
			MinConfidence: v.MinConfidence,
		},
		Hooks: Hooks{
			Enabled:        true,
			TimeoutSeconds: defaultHookTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

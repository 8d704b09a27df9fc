package retrieval

import (
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
)

const (
	DefaultMintBatchDelay   = 500 * time.Millisecond
	DefaultVolumeBatchDelay = 300 * time.Millisecond
)

// Options tunes one retrieval. Zero fields fall back to the package defaults,
// except BatchDelay where zero means no delay.
type Options struct {
	CountPageSize int
	TimePageSize  int
	MaxPages      int
	BatchSize     int
	BatchDelay    time.Duration
	Retry         RetryPolicy

	// Sleep replaces the inter-batch wait. Tests use it to observe delays.
	Sleep   SleepFunc
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// MintActivityOptions are the settings for count-bounded mint activity scans.
func MintActivityOptions() Options {
	return Options{
		CountPageSize: DefaultCountPageSize,
		TimePageSize:  DefaultTimePageSize,
		MaxPages:      DefaultMaxPages,
		BatchSize:     DefaultBatchSize,
		BatchDelay:    DefaultMintBatchDelay,
		Retry:         DefaultRetryPolicy(),
	}
}

// VolumeOptions are the settings for time-bounded volume analysis.
func VolumeOptions() Options {
	return Options{
		CountPageSize: DefaultCountPageSize,
		TimePageSize:  DefaultTimePageSize,
		MaxPages:      DefaultMaxPages,
		BatchSize:     DefaultBatchSize,
		BatchDelay:    DefaultVolumeBatchDelay,
		Retry:         DefaultRetryPolicy(),
	}
}

func (o Options) withDefaults() Options {
	if o.CountPageSize <= 0 {
		o.CountPageSize = DefaultCountPageSize
	}
	if o.TimePageSize <= 0 {
		o.TimePageSize = DefaultTimePageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Retry.Logger == nil {
		o.Retry.Logger = o.Logger
	}
	if o.Retry.Metrics == nil {
		o.Retry.Metrics = o.Metrics
	}
	return o
}

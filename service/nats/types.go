package nats

import (
	"time"

	"github.com/brojonat/walletlens/service/analysis"
)

// Report kinds carried in ReportEvent.Kind.
const (
	KindMintActivity = "mint_activity"
	KindVolume       = "volume"
)

// ReportEvent is published to JetStream whenever an analysis completes.
// Exactly one of MintActivity or Volume is set, matching Kind.
type ReportEvent struct {
	Kind          string `json:"kind"`
	WalletAddress string `json:"wallet_address"`

	// Mint activity parameters
	FilterFailed bool `json:"filter_failed,omitempty"`
	MaxTxCount   int  `json:"max_tx_count,omitempty"`

	// Volume parameters
	WindowHours float64 `json:"window_hours,omitempty"`

	MintActivity *analysis.MintActivityResult  `json:"mint_activity,omitempty"`
	Volume       *analysis.TransactionAnalysis `json:"volume,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// NewMintReportEvent builds the event for a completed mint activity analysis.
func NewMintReportEvent(address string, filterFailed bool, maxTxCount int, result *analysis.MintActivityResult) *ReportEvent {
	return &ReportEvent{
		Kind:          KindMintActivity,
		WalletAddress: address,
		FilterFailed:  filterFailed,
		MaxTxCount:    maxTxCount,
		MintActivity:  result,
		PublishedAt:   time.Now().UTC(),
	}
}

// NewVolumeReportEvent builds the event for a completed volume analysis.
func NewVolumeReportEvent(address string, windowHours float64, report *analysis.TransactionAnalysis) *ReportEvent {
	return &ReportEvent{
		Kind:          KindVolume,
		WalletAddress: address,
		WindowHours:   windowHours,
		Volume:        report,
		PublishedAt:   time.Now().UTC(),
	}
}

// Subject returns the JetStream subject the event is published to.
func (e *ReportEvent) Subject() string {
	if e.Kind == KindVolume {
		return VolumeSubject(e.WalletAddress)
	}
	return MintSubject(e.WalletAddress)
}

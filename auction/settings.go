package auction

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
)

// Auction modes. Only fast mode is handled by this engine; the slow variant
// is a sibling engine sharing the pure algorithms.
const (
	AuctionModeFast = "fast"
	AuctionModeSlow = "slow"
)

// TimeoutAction selects what happens when the nominator clock expires
// without a user nomination.
type TimeoutAction string

// Timeout actions.
const (
	AutoNominateAndOpenBid TimeoutAction = "auto_nominate_and_open_bid"
	AutoNominateNoOpenBid  TimeoutAction = "auto_nominate_no_open_bid"
	AutoSkipNominator      TimeoutAction = "auto_skip_nominator"
)

// DraftSettings is the enumerated configuration record decoded from the
// draft's settings blob. Unknown keys are ignored; absent keys take the
// documented defaults.
type DraftSettings struct {
	AuctionMode           string        `json:"auctionMode" validate:"oneof=fast slow"`
	MinBid                int64         `json:"minBid" validate:"min=1"`
	MinIncrement          int64         `json:"minIncrement" validate:"min=1"`
	NominationSeconds     int           `json:"nominationSeconds" validate:"min=1"`
	ResetOnBidSeconds     int           `json:"resetOnBidSeconds" validate:"min=1"`
	MaxLotDurationSeconds *int          `json:"maxLotDurationSeconds" validate:"omitempty,min=1"`
	TimeoutAction         TimeoutAction `json:"fastAuctionTimeoutAction" validate:"oneof=auto_nominate_and_open_bid auto_nominate_no_open_bid auto_skip_nominator"`
	AuctionBudget         int64         `json:"auctionBudget" validate:"min=1"`
	RosterSlots           int           `json:"rosterSlots" validate:"min=1"`
	// AutoNominateMaxBidCeiling caps the smart fallback proxy placed for an
	// AFK nominator. Zero disables the fallback; the opening bid stays at
	// MinBid.
	AutoNominateMaxBidCeiling int64 `json:"autoNominateMaxBidCeiling" validate:"min=0"`
}

var settingsValidator = validator.New()

// DefaultSettings returns the documented defaults for a fast auction draft.
func DefaultSettings() DraftSettings {
	return DraftSettings{
		AuctionMode:       AuctionModeFast,
		MinBid:            1,
		MinIncrement:      1,
		NominationSeconds: 60,
		ResetOnBidSeconds: 15,
		TimeoutAction:     AutoNominateAndOpenBid,
		AuctionBudget:     200,
		RosterSlots:       15,
	}
}

// ParseSettings overlays raw JSON settings on the defaults and validates the
// result. A nil or empty blob yields the defaults.
func ParseSettings(raw []byte) (DraftSettings, error) {
	s := DefaultSettings()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s); err != nil {
			return DraftSettings{}, Validationf("malformed draft settings: %v", err)
		}
	}
	if err := settingsValidator.Struct(s); err != nil {
		return DraftSettings{}, Validationf("invalid draft settings: %v", err)
	}
	return s, nil
}

// Validate checks an in-memory settings record against the same rules as
// ParseSettings.
func (s DraftSettings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return Validationf("invalid draft settings: %v", err)
	}
	return nil
}

// NominationWindow is the nominator clock and initial lot duration.
func (s DraftSettings) NominationWindow() time.Duration {
	return time.Duration(s.NominationSeconds) * time.Second
}

// ResetWindow is the timer reset applied on a qualifying bid.
func (s DraftSettings) ResetWindow() time.Duration {
	return time.Duration(s.ResetOnBidSeconds) * time.Second
}

// MaxLotDuration is the hard cap on a lot's life measured from its creation,
// or nil when uncapped.
func (s DraftSettings) MaxLotDuration() *time.Duration {
	if s.MaxLotDurationSeconds == nil {
		return nil
	}
	d := time.Duration(*s.MaxLotDurationSeconds) * time.Second
	return &d
}

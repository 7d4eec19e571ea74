package reconcile

import (
	"fmt"
	"time"
)

// Mode selects a preset for index validation.
type Mode string

const (
	// ModeProduction validates at most once per window and only logs.
	ModeProduction Mode = "production"

	// ModeDevelopment validates after every reconciliation and fails on
	// corruption.
	ModeDevelopment Mode = "development"

	// ModeTest behaves like ModeDevelopment.
	ModeTest Mode = "test"
)

// DefaultValidationWindow is the production cooldown between validations.
const DefaultValidationWindow = 60 * time.Second

// Config controls how a Reconciler validates its output.
type Config struct {
	Mode Mode

	// ValidateIndices enables the index validator.
	ValidateIndices bool

	// ValidationWindow is the leading-edge throttle window. Zero runs the
	// validator on every call.
	ValidationWindow time.Duration

	// ShouldThrow makes validation failures returned errors instead of log
	// lines.
	ShouldThrow bool

	// IncludeBoundText also checks bound text against its container.
	IncludeBoundText bool
}

// DefaultConfig returns the production preset.
func DefaultConfig() Config {
	cfg, _ := ConfigForMode(ModeProduction)
	return cfg
}

// ConfigForMode returns the preset for mode.
func ConfigForMode(mode Mode) (Config, error) {
	switch mode {
	case ModeProduction:
		return Config{
			Mode:             ModeProduction,
			ValidateIndices:  true,
			ValidationWindow: DefaultValidationWindow,
			IncludeBoundText: true,
		}, nil
	case ModeDevelopment, ModeTest:
		return Config{
			Mode:             mode,
			ValidateIndices:  true,
			ShouldThrow:      true,
			IncludeBoundText: true,
		}, nil
	default:
		return Config{}, fmt.Errorf("unknown mode %q (want production, development or test)", mode)
	}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, err := ConfigForMode(m); err != nil {
		return "", err
	}
	return m, nil
}

// Validate checks the configuration for impossible values.
func (c Config) Validate() error {
	if c.ValidationWindow < 0 {
		return fmt.Errorf("validation window must not be negative, got %s", c.ValidationWindow)
	}
	return nil
}

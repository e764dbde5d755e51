// Package profile loads named sweep profiles from a YAML file. A profile
// overrides the sweep range, dwell and detection thresholds of the base
// configuration, so one rig can carry tuned settings for several relay
// families.
package profile

import (
	"os"
	"time"

	"codeberg.org/mkrell/relayctl/internal/config"
	"codeberg.org/mkrell/relayctl/internal/errors"
	"gopkg.in/yaml.v3"
)

const (
	ErrReadProfile    = errors.ErrorCode("profile_read_failed")
	ErrParseProfile   = errors.ErrorCode("profile_parse_failed")
	ErrUnknownProfile = errors.ErrorCode("profile_unknown")
	ErrInvalidProfile = errors.ErrorCode("profile_invalid")
)

// File is the root document shape.
type File struct {
	Profiles []Profile `yaml:"profiles"`
}

// Profile is one named parameter set. Zero values leave the base
// configuration untouched.
type Profile struct {
	// Name uniquely identifies the profile within the file
	Name string `yaml:"name"`

	SweepStart *int `yaml:"sweepStart,omitempty"`
	SweepEnd   *int `yaml:"sweepEnd,omitempty"`
	SweepStep  *int `yaml:"sweepStep,omitempty"`

	// Dwell is how long each actuation level is held, e.g. "100ms"
	Dwell string `yaml:"dwell,omitempty"`

	ContactMinOhm  *float64 `yaml:"contactMinOhm,omitempty"`
	StabilizeMaxCV *float64 `yaml:"stabilizeMaxCV,omitempty"`

	// GlobalTimeout bounds the whole run, e.g. "45s"
	GlobalTimeout string `yaml:"globalTimeout,omitempty"`
}

// Load parses the profile file at path.
func Load(path string) (*File, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrReadProfile, err)
	}

	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, errFactory.Wrap(ErrParseProfile, err)
	}

	return f, nil
}

// Find returns the named profile.
func (f *File) Find(name string) (Profile, error) {
	for _, p := range f.Profiles {
		if p.Name == name {
			return p, nil
		}
	}

	return Profile{}, errors.New().WithData(ErrUnknownProfile, name)
}

// Apply overlays the profile onto cfg and re-validates the result.
func (p Profile) Apply(cfg *config.Config) error {
	errFactory := errors.New()

	if p.SweepStart != nil {
		cfg.Sweep.Start = *p.SweepStart
	}
	if p.SweepEnd != nil {
		cfg.Sweep.End = *p.SweepEnd
	}
	if p.SweepStep != nil {
		cfg.Sweep.Step = *p.SweepStep
	}
	if p.ContactMinOhm != nil {
		cfg.Limits.ContactMinOhm = *p.ContactMinOhm
	}
	if p.StabilizeMaxCV != nil {
		cfg.Limits.StabilizeMaxCV = *p.StabilizeMaxCV
	}

	if p.Dwell != "" {
		d, err := time.ParseDuration(p.Dwell)
		if err != nil {
			return errFactory.Wrap(ErrInvalidProfile, err)
		}
		cfg.Timing.Dwell = d
	}
	if p.GlobalTimeout != "" {
		d, err := time.ParseDuration(p.GlobalTimeout)
		if err != nil {
			return errFactory.Wrap(ErrInvalidProfile, err)
		}
		cfg.Timing.GlobalTimeout = d
	}

	return cfg.Validate()
}

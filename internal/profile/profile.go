// Package profile loads the family profile and pipeline tunables from a TOML
// file. Empirically chosen constants (dedup thresholds, time buckets, channel
// timeouts, dispatch caps) live here so they can be tuned without a rebuild.
package profile

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Child is one family member events are scouted for.
type Child struct {
	Name string `toml:"name"`
	Age  int    `toml:"age"`
}

// Family holds the identity and contact data used for approval messages and
// registration form filling.
type Family struct {
	ParentName  string  `toml:"parent_name"`
	Email       string  `toml:"email"`
	Phone       string  `toml:"phone"`
	Children    []Child `toml:"children"`
	HomeAddress string  `toml:"home_address"`
}

// Preferences steer the scorer.
type Preferences struct {
	ActivityKeywords []string `toml:"activity_keywords"`
	SpecialKeywords  []string `toml:"special_keywords"`
	MaxCost          float64  `toml:"max_cost"`
	MaxDistanceMiles float64  `toml:"max_distance_miles"`
	PreferWeekends   bool     `toml:"prefer_weekends"`
}

// Dedup holds the similarity thresholds and time buckets for duplicate
// detection. Defaults match the empirically chosen values; see DefaultProfile.
type Dedup struct {
	HighThreshold     float64 `toml:"high_threshold"`
	LowThreshold      float64 `toml:"low_threshold"`
	TimeToleranceMins int     `toml:"time_tolerance_mins"`
}

// Approval holds the channel timeout/reminder settings and dispatch pacing.
type Approval struct {
	Timeout        duration `toml:"timeout"`
	ReminderAfter  duration `toml:"reminder_after"`
	DispatchCap    int      `toml:"dispatch_cap"`
	DispatchPacing duration `toml:"dispatch_pacing"`
}

// Profile is the root of the TOML file.
type Profile struct {
	Family      Family      `toml:"family"`
	Preferences Preferences `toml:"preferences"`
	Dedup       Dedup       `toml:"dedup"`
	Approval    Approval    `toml:"approval"`

	// VenueAliases maps alternate venue spellings to a canonical name,
	// e.g. "exploratorium at pier 15" -> "pier 15".
	VenueAliases map[string]string `toml:"venue_aliases"`
}

// duration wraps time.Duration with TOML string decoding ("48h", "30m").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultProfile returns a profile with the shipped tunable defaults and an
// empty family section.
func DefaultProfile() *Profile {
	return &Profile{
		Preferences: Preferences{
			MaxCost:          50,
			MaxDistanceMiles: 25,
			PreferWeekends:   true,
			SpecialKeywords:  []string{"special", "seasonal", "festival", "holiday", "grand opening", "one day only"},
		},
		Dedup: Dedup{
			HighThreshold:     0.8,
			LowThreshold:      0.5,
			TimeToleranceMins: 90,
		},
		Approval: Approval{
			Timeout:        duration{48 * time.Hour},
			ReminderAfter:  duration{24 * time.Hour},
			DispatchCap:    5,
			DispatchPacing: duration{2 * time.Second},
		},
		VenueAliases: map[string]string{},
	}
}

// Load reads the profile file at path, overlaying it on the defaults. A
// missing file returns the defaults unchanged.
func Load(path string) (*Profile, error) {
	p := DefaultProfile()
	if _, err := toml.DecodeFile(path, p); err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("load profile %s: %w", path, err)
	}
	if p.Dedup.HighThreshold <= 0 || p.Dedup.HighThreshold > 1 {
		return nil, fmt.Errorf("profile: dedup high_threshold must be in (0,1]")
	}
	if p.Dedup.LowThreshold < 0 || p.Dedup.LowThreshold > p.Dedup.HighThreshold {
		return nil, fmt.Errorf("profile: dedup low_threshold must be in [0, high_threshold]")
	}
	return p, nil
}

// ChildAges returns the ages of all children in the profile.
func (p *Profile) ChildAges() []int {
	ages := make([]int, 0, len(p.Family.Children))
	for _, c := range p.Family.Children {
		ages = append(ages, c.Age)
	}
	return ages
}

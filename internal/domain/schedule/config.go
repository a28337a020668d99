package schedule

import (
	"fmt"
	"strconv"
	"time"
)

// HoursConfig is the serialised form of Hours.
type HoursConfig struct {
	Open  string `json:"open" mapstructure:"open"`
	Close string `json:"close" mapstructure:"close"`
}

// DayConfig is the serialised form of a per-day entry. A nil Enabled means
// enabled; missing Open/Close fall back to 00:00 and 23:59.
type DayConfig struct {
	Enabled *bool  `json:"enabled,omitempty" mapstructure:"enabled"`
	Open    string `json:"open,omitempty" mapstructure:"open"`
	Close   string `json:"close,omitempty" mapstructure:"close"`
}

// Config is the serialised form of a Schedule. ByDay keys are weekday
// numbers, 0 = Sunday.
type Config struct {
	ByDay   map[string]DayConfig `json:"by_day,omitempty" mapstructure:"by_day"`
	Weekday *HoursConfig         `json:"weekday,omitempty" mapstructure:"weekday"`
	Weekend *HoursConfig         `json:"weekend,omitempty" mapstructure:"weekend"`
}

// FromConfig validates cfg and builds a Schedule.
func FromConfig(cfg Config) (Schedule, error) {
	byDay := make(map[time.Weekday]DayEntry, len(cfg.ByDay))
	for key, dc := range cfg.ByDay {
		n, err := strconv.Atoi(key)
		if err != nil || n < 0 || n > 6 {
			return Schedule{}, fmt.Errorf("invalid weekday key %q", key)
		}
		hours, err := parseHours(dc.Open, dc.Close, "00:00", "23:59")
		if err != nil {
			return Schedule{}, fmt.Errorf("weekday %d: %w", n, err)
		}
		byDay[time.Weekday(n)] = DayEntry{
			Enabled: dc.Enabled == nil || *dc.Enabled,
			Hours:   hours,
		}
	}

	weekday, err := parsePair(cfg.Weekday, DefaultWeekday)
	if err != nil {
		return Schedule{}, fmt.Errorf("weekday hours: %w", err)
	}
	weekend, err := parsePair(cfg.Weekend, DefaultWeekend)
	if err != nil {
		return Schedule{}, fmt.Errorf("weekend hours: %w", err)
	}
	return New(byDay, weekday, weekend), nil
}

func parsePair(hc *HoursConfig, fallback Hours) (*Hours, error) {
	if hc == nil {
		return nil, nil
	}
	h, err := parseHours(hc.Open, hc.Close, fallback.Open.String(), fallback.Close.String())
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func parseHours(open, closeAt, defOpen, defClose string) (Hours, error) {
	if open == "" {
		open = defOpen
	}
	if closeAt == "" {
		closeAt = defClose
	}
	o, err := ParseClock(open)
	if err != nil {
		return Hours{}, err
	}
	c, err := ParseClock(closeAt)
	if err != nil {
		return Hours{}, err
	}
	if c < o {
		return Hours{}, fmt.Errorf("close %s before open %s", c, o)
	}
	return Hours{Open: o, Close: c}, nil
}

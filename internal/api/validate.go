package api

import (
	"fmt"
	"time"

	"drtnav/internal/model"
	"drtnav/internal/store"
)

// filterLayouts are the accepted wire formats for the time window, minutes
// precision first.
var filterLayouts = []string{"2006-01-02 15:04", "2006-01-02 15:04:05", time.RFC3339}

func parseFilterTime(v string) (time.Time, error) {
	for _, layout := range filterLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q, expected YYYY-MM-DD HH:MM", v)
}

// parseTimeFilter builds a TimeFilter from optional start/end strings.
// Reversed bounds are swapped rather than rejected.
func parseTimeFilter(start, end string) (store.TimeFilter, error) {
	var f store.TimeFilter
	if start != "" {
		t, err := parseFilterTime(start)
		if err != nil {
			return f, fmt.Errorf("start: %w", err)
		}
		f.Start = &t
	}
	if end != "" {
		t, err := parseFilterTime(end)
		if err != nil {
			return f, fmt.Errorf("end: %w", err)
		}
		f.End = &t
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		f.Start, f.End = f.End, f.Start
	}
	return f, nil
}

// validateRunParams rejects negative thresholds; zero means "use default".
func validateRunParams(p model.RunParams) error {
	if p.MaxWaitMinutes < 0 {
		return fmt.Errorf("maxWaitMinutes must be >= 0")
	}
	if p.MaxTravelMinutes < 0 {
		return fmt.Errorf("maxTravelMinutes must be >= 0")
	}
	if p.VehicleLimit < 0 {
		return fmt.Errorf("vehicleLimit must be >= 0")
	}
	return nil
}

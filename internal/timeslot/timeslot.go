// Package timeslot holds the pure time-window helpers shared by the peak-hours
// analyzer and the distribution scheduler.
package timeslot

import (
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
)

// regionZones maps supported region codes to the zone their peak hours are expressed in
var regionZones = map[string]string{
	"AR": "America/Argentina/Buenos_Aires",
	"AU": "Australia/Sydney",
	"BR": "America/Sao_Paulo",
	"CA": "America/Toronto",
	"CN": "Asia/Shanghai",
	"DE": "Europe/Berlin",
	"ES": "Europe/Madrid",
	"FR": "Europe/Paris",
	"GB": "Europe/London",
	"IN": "Asia/Kolkata",
	"IT": "Europe/Rome",
	"JP": "Asia/Tokyo",
	"KR": "Asia/Seoul",
	"MX": "America/Mexico_City",
	"NL": "Europe/Amsterdam",
	"PT": "Europe/Lisbon",
	"US": "America/New_York",
	"VN": "Asia/Ho_Chi_Minh",
}

var platforms = map[string]struct{}{
	"facebook":  {},
	"instagram": {},
	"linkedin":  {},
	"tiktok":    {},
	"twitter":   {},
	"youtube":   {},
}

// unavailable lists platforms that cannot be reached in a region
var unavailable = map[string]map[string]struct{}{
	"CN": {"facebook": {}, "instagram": {}, "twitter": {}, "youtube": {}},
}

// NormalizeRegion canonicalizes a region code
func NormalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

// NormalizePlatform canonicalizes a platform name
func NormalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// Location returns the zone a region's peak hours are expressed in
func Location(region string) (*time.Location, error) {
	name, ok := regionZones[NormalizeRegion(region)]
	if !ok {
		return nil, domain.Invalidf("unsupported region %q", region)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, domain.Invalidf("load zone for region %q: %v", region, err)
	}
	return loc, nil
}

// ValidatePair rejects region/platform combinations that can never be scheduled
func ValidatePair(region, platform string) error {
	r, p := NormalizeRegion(region), NormalizePlatform(platform)
	if _, ok := regionZones[r]; !ok {
		return domain.Invalidf("unsupported region %q", region)
	}
	if _, ok := platforms[p]; !ok {
		return domain.Invalidf("unsupported platform %q", platform)
	}
	if _, blocked := unavailable[r][p]; blocked {
		return domain.Invalidf("platform %q is not available in region %q", p, r)
	}
	return nil
}

// Window is a region-local daily window expressed in wall-clock hours
type Window struct {
	Name      string
	StartHour int
	EndHour   int
	Score     float64
}

// DefaultWindows are used whenever engagement data is missing
var DefaultWindows = []Window{
	{Name: "morning", StartHour: 8, EndHour: 10, Score: 0.5},
	{Name: "midday", StartHour: 12, EndHour: 14, Score: 0.7},
	{Name: "evening", StartHour: 18, EndHour: 21, Score: 0.9},
}

// Fallback returns the next occurrence of each default window for the pair,
// ranked by descending score.
func Fallback(region, platform string, now time.Time) ([]domain.TimeSlot, error) {
	loc, err := Location(region)
	if err != nil {
		return nil, err
	}
	local := now.In(loc)
	slots := make([]domain.TimeSlot, 0, len(DefaultWindows))
	for _, w := range DefaultWindows {
		start := time.Date(local.Year(), local.Month(), local.Day(), w.StartHour, 0, 0, 0, loc)
		end := time.Date(local.Year(), local.Month(), local.Day(), w.EndHour, 0, 0, 0, loc)
		if !end.After(now) {
			start = start.AddDate(0, 0, 1)
			end = end.AddDate(0, 0, 1)
		}
		slots = append(slots, domain.TimeSlot{
			Region:   NormalizeRegion(region),
			Platform: NormalizePlatform(platform),
			Start:    start.UTC(),
			End:      end.UTC(),
			Score:    w.Score,
		})
	}
	Rank(slots)
	return slots, nil
}

// Rank sorts slots by descending score; equal scores keep the earlier window first
func Rank(slots []domain.TimeSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Score != slots[j].Score {
			return slots[i].Score > slots[j].Score
		}
		return slots[i].Start.Before(slots[j].Start)
	})
}

// Usable drops windows that are empty, inverted, already over, or scored outside [0,1]
func Usable(slots []domain.TimeSlot, now time.Time) []domain.TimeSlot {
	out := make([]domain.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if !s.End.After(s.Start) || !s.End.After(now) {
			continue
		}
		if s.Score < 0 || s.Score > 1 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// DayKey identifies the region-local calendar day an instant falls on
func DayKey(region string, t time.Time) string {
	loc, err := Location(region)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

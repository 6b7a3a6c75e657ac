package tz

import (
	"sort"
	"strings"
	"time"
)

// CatalogEntry is one selectable timezone in the preference screen.
type CatalogEntry struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
	Offset      string `json:"offset"`
	OffsetMins  int    `json:"offset_mins"`
}

// CatalogGroup groups entries by area.
type CatalogGroup struct {
	Area    string         `json:"area"`
	Entries []CatalogEntry `json:"entries"`
}

var catalogAreas = []struct {
	area    string
	regions []string
}{
	{"Americas", []string{
		"America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles",
		"America/Phoenix", "America/Anchorage", "America/Toronto", "America/Mexico_City",
		"America/Bogota", "America/Sao_Paulo", "America/Argentina/Buenos_Aires",
		"America/St_Johns", "Pacific/Honolulu",
	}},
	{"Europe", []string{
		"Europe/London", "Europe/Dublin", "Europe/Lisbon", "Europe/Paris", "Europe/Berlin",
		"Europe/Madrid", "Europe/Rome", "Europe/Amsterdam", "Europe/Stockholm",
		"Europe/Warsaw", "Europe/Athens", "Europe/Istanbul", "Europe/Moscow",
	}},
	{"Africa", []string{
		"Africa/Casablanca", "Africa/Lagos", "Africa/Cairo", "Africa/Johannesburg", "Africa/Nairobi",
	}},
	{"Asia", []string{
		"Asia/Dubai", "Asia/Tehran", "Asia/Karachi", "Asia/Kolkata", "Asia/Kathmandu",
		"Asia/Dhaka", "Asia/Bangkok", "Asia/Jakarta", "Asia/Singapore", "Asia/Shanghai",
		"Asia/Hong_Kong", "Asia/Seoul", "Asia/Tokyo",
	}},
	{"Pacific", []string{
		"Australia/Perth", "Australia/Adelaide", "Australia/Sydney", "Pacific/Auckland",
		"Pacific/Fiji", "Pacific/Kiritimati",
	}},
	{"Other", []string{"UTC"}},
}

// Catalog lists the selectable region identifiers, with their offsets in
// effect at the given instant, followed by the legacy offset codes.
// Regions missing from the host timezone database are skipped.
func Catalog(at time.Time) []CatalogGroup {
	groups := make([]CatalogGroup, 0, len(catalogAreas)+1)

	for _, a := range catalogAreas {
		entries := make([]CatalogEntry, 0, len(a.regions))
		for _, name := range a.regions {
			loc, err := Region(name).Location()
			if err != nil {
				continue
			}
			_, offset := at.In(loc).Zone()
			entries = append(entries, CatalogEntry{
				ID:          name,
				Kind:        KindRegion.String(),
				DisplayName: displayName(name),
				Offset:      at.In(loc).Format("-07:00"),
				OffsetMins:  offset / 60,
			})
		}

		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].OffsetMins < entries[j].OffsetMins
		})

		groups = append(groups, CatalogGroup{Area: a.area, Entries: entries})
	}

	legacy := make([]CatalogEntry, 0, 12+MaxOffsetHours+1)
	for h := -12; h <= MaxOffsetHours; h++ {
		id := Offset(h < 0, h)
		legacy = append(legacy, CatalogEntry{
			ID:          id.String(),
			Kind:        KindOffset.String(),
			DisplayName: strings.ToUpper(id.String()),
			Offset:      id.FixedOffsetString(),
			OffsetMins:  h * 60,
		})
	}
	groups = append(groups, CatalogGroup{Area: "Fixed offsets", Entries: legacy})

	return groups
}

// displayName turns "America/Argentina/Buenos_Aires" into "Buenos Aires".
func displayName(region string) string {
	if region == "UTC" {
		return "Coordinated Universal Time (UTC)"
	}
	city := region
	if i := strings.LastIndex(region, "/"); i >= 0 {
		city = region[i+1:]
	}
	return strings.ReplaceAll(city, "_", " ")
}

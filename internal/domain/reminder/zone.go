package reminder

import "time"

// ZoneOf captures the location of t for storage. Stores that keep only the instant need it
// because daily and weekly triggers fire at a wall-clock time in that location.
func ZoneOf(t time.Time) (name string, offset int) {
	name, offset = t.Zone()
	if loc := t.Location().String(); loc != "" {
		name = loc
	}
	return name, offset
}

// RestoreZone returns the location saved by ZoneOf. Unknown names fall back to a fixed offset.
func RestoreZone(name string, offset int) *time.Location {
	if name == "" || name == "UTC" {
		return time.UTC
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone(name, offset)
}

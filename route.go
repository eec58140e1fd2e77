package main

import "math"

type Waypoint struct {
	Index          int     `json:"index"`
	City           string  `json:"city"`
	MilesFromStart int     `json:"miles_from_start"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
}

// Position is the derived spot on the route for a given cumulative mileage.
type Position struct {
	Lat                float64   `json:"lat"`
	Lon                float64   `json:"lon"`
	MilesTraveled      float64   `json:"miles_traveled"`
	EffectiveMiles     float64   `json:"effective_miles"`
	CrossingsCompleted int       `json:"crossings_completed"`
	CurrentWaypoint    Waypoint  `json:"current_waypoint"`
	NextWaypoint       *Waypoint `json:"next_waypoint"`
	MilesToNext        float64   `json:"miles_to_next"`
	PercentComplete    float64   `json:"percent_complete"`
}

// Route is an ordered waypoint list; MilesFromStart must be strictly
// increasing and TotalMiles at least the last waypoint's offset.
type Route struct {
	Waypoints  []Waypoint
	TotalMiles float64
}

// crossCountryRoute follows I-90 from Seattle to Boston.
var crossCountryRoute = Route{
	TotalMiles: 2850,
	Waypoints: []Waypoint{
		{0, "Seattle, WA", 0, 47.6080, -122.3375},
		{1, "Spokane, WA", 280, 47.6588, -117.4260},
		{2, "Missoula, MT", 473, 46.8721, -113.9940},
		{3, "Billings, MT", 740, 45.7833, -108.5007},
		{4, "Rapid City, SD", 1040, 44.0805, -103.2310},
		{5, "Sioux Falls, SD", 1390, 43.5460, -96.7313},
		{6, "Madison, WI", 1700, 43.0731, -89.4012},
		{7, "Chicago, IL", 1850, 41.8781, -87.6298},
		{8, "Cleveland, OH", 2190, 41.4993, -81.6944},
		{9, "Buffalo, NY", 2380, 42.8864, -78.8784},
		{10, "Albany, NY", 2660, 42.6526, -73.7562},
		{11, "Boston, MA", 2850, 42.3601, -71.0589},
	},
}

// Position maps cumulative miles walked to a spot on the route. Mileage past
// the route's end wraps: effective miles stay within [0, TotalMiles) and each
// full traversal counts as one crossing. Pure and total for totalMiles >= 0.
func (r Route) Position(totalMiles float64) Position {
	effective := math.Mod(totalMiles, r.TotalMiles)
	crossings := int(totalMiles / r.TotalMiles)

	current := r.Waypoints[0]
	var next *Waypoint
	for i := range r.Waypoints {
		if effective < float64(r.Waypoints[i].MilesFromStart) {
			break
		}
		current = r.Waypoints[i]
		next = nil
		if i < len(r.Waypoints)-1 {
			next = &r.Waypoints[i+1]
		}
	}

	lat, lon := current.Lat, current.Lon
	milesToNext := 0.0
	if next != nil {
		segmentLength := float64(next.MilesFromStart - current.MilesFromStart)
		ratio := 0.0
		if segmentLength > 0 {
			ratio = (effective - float64(current.MilesFromStart)) / segmentLength
		}
		lat = current.Lat + (next.Lat-current.Lat)*ratio
		lon = current.Lon + (next.Lon-current.Lon)*ratio
		milesToNext = float64(next.MilesFromStart) - effective
	}

	return Position{
		Lat:                lat,
		Lon:                lon,
		MilesTraveled:      totalMiles,
		EffectiveMiles:     effective,
		CrossingsCompleted: crossings,
		CurrentWaypoint:    current,
		NextWaypoint:       next,
		MilesToNext:        milesToNext,
		PercentComplete:    effective / r.TotalMiles * 100,
	}
}

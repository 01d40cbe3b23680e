// Package catalog holds the compiled-in guide content for each activity.
// Templates are immutable: they always exist regardless of what the override
// store or any device-local state says about them.
package catalog

// Template is a build-time default guide section. Key is unique per activity.
type Template struct {
	Activity  string
	Key       string
	Title     string
	Body      string
	IconKey   string
	Color     string
	Category  string
	BaseOrder int
}

// Activity is an event type crews run in the field.
type Activity struct {
	ID   string
	Name string
}

// Section categories, in display order.
const (
	CategoryBefore = "before"
	CategoryDuring = "during"
	CategoryAfter  = "after"
)

var activities = []Activity{
	{ID: "raft-building", Name: "Raft Building"},
	{ID: "high-ropes", Name: "High Ropes"},
	{ID: "orienteering", Name: "Orienteering"},
	{ID: "crate-stacking", Name: "Crate Stacking"},
	{ID: "bridge-build", Name: "Bridge Build"},
}

// Activities lists the known activities.
func Activities() []Activity {
	out := make([]Activity, len(activities))
	copy(out, activities)
	return out
}

// IsKnownActivity reports whether an activity id exists in the catalog.
func IsKnownActivity(activity string) bool {
	for _, a := range activities {
		if a.ID == activity {
			return true
		}
	}
	return false
}

// Defaults returns the template sections for an activity. The result is a
// fresh slice; callers may reorder it freely.
func Defaults(activity string) []Template {
	var out []Template
	for _, t := range templates {
		if t.Activity == activity {
			out = append(out, t)
		}
	}
	return out
}

var templates = []Template{
	// Raft Building
	{Activity: "raft-building", Key: "intro", Title: "Briefing", Body: "Welcome the group, introduce instructors, and outline the challenge: build a raft that carries the whole team across the lake.", IconKey: "flag", Color: "#2d7dd2", Category: CategoryBefore, BaseOrder: 0},
	{Activity: "raft-building", Key: "safety", Title: "Safety Checks", Body: "Buoyancy aids fitted and clipped. Count paddles in and out. Confirm the rescue boat is crewed before anyone enters the water.", IconKey: "shield", Color: "#d7263d", Category: CategoryBefore, BaseOrder: 1},
	{Activity: "raft-building", Key: "kit", Title: "Kit List", Body: "Eight barrels, six poles, twelve lashing ropes per raft. Spare rope bag stays on the pontoon.", IconKey: "box", Color: "#f4a259", Category: CategoryBefore, BaseOrder: 2},
	{Activity: "raft-building", Key: "build", Title: "Build Phase", Body: "Forty minutes. Square lashings only; demonstrate once on the demo frame. Rafts must float with all barrels sealed.", IconKey: "wrench", Color: "#2d7dd2", Category: CategoryDuring, BaseOrder: 0},
	{Activity: "raft-building", Key: "launch", Title: "Launch & Race", Body: "Rafts launch from the slipway one at a time. Course is out to the yellow buoy and back. Capsize drill ends the run, not the session.", IconKey: "wave", Color: "#2d7dd2", Category: CategoryDuring, BaseOrder: 1},
	{Activity: "raft-building", Key: "debrief", Title: "Debrief", Body: "Dry off first. Ask each team what they would change about their design and who led the build.", IconKey: "chat", Color: "#48a9a6", Category: CategoryAfter, BaseOrder: 0},

	// High Ropes
	{Activity: "high-ropes", Key: "intro", Title: "Briefing", Body: "Explain the course layout, the challenge-by-choice rule, and how the belay teams rotate.", IconKey: "flag", Color: "#2d7dd2", Category: CategoryBefore, BaseOrder: 0},
	{Activity: "high-ropes", Key: "harness", Title: "Harness Fitting", Body: "Harness above the hips, two-finger tightness, helmet clipped. Instructor buddy-checks every participant before the ladder.", IconKey: "shield", Color: "#d7263d", Category: CategoryBefore, BaseOrder: 1},
	{Activity: "high-ropes", Key: "ground-school", Title: "Ground School", Body: "Practise belay calls at ground level: climbing, climb on, take, lower. Nobody climbs until the calls are automatic.", IconKey: "school", Color: "#f4a259", Category: CategoryBefore, BaseOrder: 2},
	{Activity: "high-ropes", Key: "climb", Title: "Climb Rotation", Body: "Groups of four: one climber, two belayers, one backup. Rotate every attempt so everyone belays twice.", IconKey: "climb", Color: "#2d7dd2", Category: CategoryDuring, BaseOrder: 0},
	{Activity: "high-ropes", Key: "debrief", Title: "Debrief", Body: "Gather under the tower. Focus the discussion on trust: how did it feel to hold someone else's rope?", IconKey: "chat", Color: "#48a9a6", Category: CategoryAfter, BaseOrder: 0},

	// Orienteering
	{Activity: "orienteering", Key: "intro", Title: "Briefing", Body: "Hand out maps and punch cards. Explain the control markers, the scoring, and the hard cut-off time.", IconKey: "flag", Color: "#2d7dd2", Category: CategoryBefore, BaseOrder: 0},
	{Activity: "orienteering", Key: "map-skills", Title: "Map Skills", Body: "Five-minute refresher: orient the map, thumb your position, count paces between attack points.", IconKey: "map", Color: "#f4a259", Category: CategoryBefore, BaseOrder: 1},
	{Activity: "orienteering", Key: "boundaries", Title: "Boundaries", Body: "Site boundary is the red line on the map. The quarry area is out of bounds without exception. Whistle signal is six short blasts.", IconKey: "shield", Color: "#d7263d", Category: CategoryBefore, BaseOrder: 2},
	{Activity: "orienteering", Key: "course", Title: "On the Course", Body: "Teams leave at two-minute intervals. Sweep instructor walks the course after the last team starts.", IconKey: "compass", Color: "#2d7dd2", Category: CategoryDuring, BaseOrder: 0},
	{Activity: "orienteering", Key: "scoring", Title: "Scoring & Debrief", Body: "Tally punch cards, apply lateness penalties, announce podium. Ask teams how they divided navigation duties.", IconKey: "chat", Color: "#48a9a6", Category: CategoryAfter, BaseOrder: 0},

	// Crate Stacking
	{Activity: "crate-stacking", Key: "intro", Title: "Briefing", Body: "Two climbers build a tower of crates beneath themselves while the ground crew feeds crates and belays.", IconKey: "flag", Color: "#2d7dd2", Category: CategoryBefore, BaseOrder: 0},
	{Activity: "crate-stacking", Key: "harness", Title: "Harness & Helmet", Body: "Both climbers in full harness and helmet, buddy-checked. Ground crew wears helmets inside the drop circle.", IconKey: "shield", Color: "#d7263d", Category: CategoryBefore, BaseOrder: 1},
	{Activity: "crate-stacking", Key: "stack", Title: "Stacking Rounds", Body: "Ten-minute rounds per pair. Record the crate count at the moment of collapse, not the highest touched.", IconKey: "box", Color: "#2d7dd2", Category: CategoryDuring, BaseOrder: 0},
	{Activity: "crate-stacking", Key: "lowering", Title: "Controlled Lowering", Body: "When the tower goes, climbers sit back into the harness and are lowered clear before the crates are rebuilt.", IconKey: "wave", Color: "#d7263d", Category: CategoryDuring, BaseOrder: 1},
	{Activity: "crate-stacking", Key: "debrief", Title: "Debrief", Body: "Ask pairs how they communicated under pressure and what the ground crew noticed from below.", IconKey: "chat", Color: "#48a9a6", Category: CategoryAfter, BaseOrder: 0},

	// Bridge Build
	{Activity: "bridge-build", Key: "intro", Title: "Briefing", Body: "Teams build a bridge spanning the dry stream bed using only the planks and pioneering poles provided.", IconKey: "flag", Color: "#2d7dd2", Category: CategoryBefore, BaseOrder: 0},
	{Activity: "bridge-build", Key: "kit", Title: "Kit List", Body: "Six planks, eight poles, twenty ropes per team. No stakes: the bridge must be freestanding.", IconKey: "box", Color: "#f4a259", Category: CategoryBefore, BaseOrder: 1},
	{Activity: "bridge-build", Key: "build", Title: "Build Phase", Body: "Fifty minutes. Instructors check every lashing before the load test. A failed check costs five minutes.", IconKey: "wrench", Color: "#2d7dd2", Category: CategoryDuring, BaseOrder: 0},
	{Activity: "bridge-build", Key: "crossing", Title: "Load Test & Crossing", Body: "Instructor crosses first with a test load. Then the whole team crosses one at a time, spotters on both banks.", IconKey: "walk", Color: "#d7263d", Category: CategoryDuring, BaseOrder: 1},
	{Activity: "bridge-build", Key: "debrief", Title: "Debrief", Body: "Strike the bridge together, then review: did the plan survive contact with the stream bed?", IconKey: "chat", Color: "#48a9a6", Category: CategoryAfter, BaseOrder: 0},
}

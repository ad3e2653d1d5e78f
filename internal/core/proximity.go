package core

// DefaultProximityRadius is the Chebyshev distance within which two
// participants are considered near each other (radius 1 = 8-neighborhood).
const DefaultProximityRadius = 1

// ProximityOf returns the occupants of the same space within radius grid
// cells of p, excluding p itself. Distance is Chebyshev: both |dx| and |dy|
// must be within the radius.
//
// Proximity is recomputed only for the participant that moved or joined;
// neighbors keep their previously observed sets until their own next event.
// This asymmetry is inherited from the original protocol and is relied upon
// by clients, so it must not be "fixed" here.
func ProximityOf(p *Participant, occupants []*Participant, radius int) []*Participant {
	if radius <= 0 {
		radius = DefaultProximityRadius
	}

	var near []*Participant
	for _, other := range occupants {
		if other.ID == p.ID {
			continue
		}
		if abs(other.X-p.X) <= radius && abs(other.Y-p.Y) <= radius {
			near = append(near, other)
		}
	}
	return near
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package sequencer

// Division is a lane's step rate, counted in base (sixteenth-note) ticks.
// Only the enumerated musical values are accepted at the setter boundary.
type Division int

const (
	Div16th          Division = 1
	Div8th           Division = 2
	DivDotted8th     Division = 3
	DivQuarter       Division = 4
	DivDottedQuarter Division = 6
	DivHalf          Division = 8
	DivDottedHalf    Division = 12
	DivWhole         Division = 16
	DivDoubleWhole   Division = 32
)

var divisionOrder = []Division{
	Div16th, Div8th, DivDotted8th, DivQuarter, DivDottedQuarter,
	DivHalf, DivDottedHalf, DivWhole, DivDoubleWhole,
}

var divisionNames = map[Division]string{
	Div16th:          "1/16",
	Div8th:           "1/8",
	DivDotted8th:     "1/8.",
	DivQuarter:       "1/4",
	DivDottedQuarter: "1/4.",
	DivHalf:          "1/2",
	DivDottedHalf:    "1/2.",
	DivWhole:         "1/1",
	DivDoubleWhole:   "2/1",
}

func (d Division) String() string {
	if s, ok := divisionNames[d]; ok {
		return s
	}
	return "?"
}

// Valid reports whether d is one of the enumerated divisions.
func (d Division) Valid() bool {
	_, ok := divisionNames[d]
	return ok
}

// NextDivision steps to the next slower division, wrapping to the fastest.
func NextDivision(d Division) Division {
	for i, v := range divisionOrder {
		if v == d {
			return divisionOrder[(i+1)%len(divisionOrder)]
		}
	}
	return DivQuarter
}

// PrevDivision steps to the next faster division, wrapping to the slowest.
func PrevDivision(d Division) Division {
	for i, v := range divisionOrder {
		if v == d {
			return divisionOrder[(i+len(divisionOrder)-1)%len(divisionOrder)]
		}
	}
	return DivQuarter
}

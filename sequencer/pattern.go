package sequencer

const (
	// NumSteps is the size of the step grid every lane traverses.
	NumSteps = 16

	// NumPatterns is the number of built-in snake patterns.
	NumPatterns = 16
)

// SnakePattern is a fixed traversal order over the 16-step grid: a
// permutation of the physical step indices 0-15. Logical position p plays
// physical step Sequence[p]. Patterns are built once and never mutated.
type SnakePattern struct {
	Name     string
	Sequence [NumSteps]int
}

// The grid reads as four rows of four:
//
//	 0  1  2  3
//	 4  5  6  7
//	 8  9 10 11
//	12 13 14 15
var snakePatterns = [NumPatterns]SnakePattern{
	{"rows", [NumSteps]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}},
	{"rows snake", [NumSteps]int{0, 1, 2, 3, 7, 6, 5, 4, 8, 9, 10, 11, 15, 14, 13, 12}},
	{"columns", [NumSteps]int{0, 4, 8, 12, 1, 5, 9, 13, 2, 6, 10, 14, 3, 7, 11, 15}},
	{"columns snake", [NumSteps]int{0, 4, 8, 12, 13, 9, 5, 1, 2, 6, 10, 14, 15, 11, 7, 3}},
	{"spiral in", [NumSteps]int{0, 1, 2, 3, 7, 11, 15, 14, 13, 12, 8, 4, 5, 6, 10, 9}},
	{"spiral out", [NumSteps]int{9, 10, 6, 5, 4, 8, 12, 13, 14, 15, 11, 7, 3, 2, 1, 0}},
	{"diagonals", [NumSteps]int{0, 1, 4, 2, 5, 8, 3, 6, 9, 12, 7, 10, 13, 11, 14, 15}},
	{"diagonals snake", [NumSteps]int{0, 4, 1, 2, 5, 8, 12, 9, 6, 3, 7, 10, 13, 14, 11, 15}},
	{"quads", [NumSteps]int{0, 1, 4, 5, 2, 3, 6, 7, 8, 9, 12, 13, 10, 11, 14, 15}},
	{"quads turn", [NumSteps]int{0, 1, 5, 4, 2, 3, 7, 6, 8, 9, 13, 12, 10, 11, 15, 14}},
	{"checker", [NumSteps]int{0, 2, 5, 7, 8, 10, 13, 15, 1, 3, 4, 6, 9, 11, 12, 14}},
	{"corners in", [NumSteps]int{0, 3, 12, 15, 1, 7, 8, 14, 2, 11, 4, 13, 5, 6, 9, 10}},
	{"rows reverse", [NumSteps]int{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}},
	{"rows snake reverse", [NumSteps]int{15, 14, 13, 12, 8, 9, 10, 11, 7, 6, 5, 4, 0, 1, 2, 3}},
	{"ends in", [NumSteps]int{0, 15, 1, 14, 2, 13, 3, 12, 4, 11, 5, 10, 6, 9, 7, 8}},
	{"leap", [NumSteps]int{0, 6, 12, 2, 8, 14, 4, 10, 5, 3, 9, 15, 1, 7, 13, 11}},
}

// Pattern returns the snake pattern at index. Out-of-range indices clamp to
// the nearest valid pattern rather than panic.
func Pattern(index int) *SnakePattern {
	return &snakePatterns[ClampPatternIndex(index)]
}

// ClampPatternIndex forces index into [0, NumPatterns-1].
func ClampPatternIndex(index int) int {
	if index < 0 {
		return 0
	}
	if index >= NumPatterns {
		return NumPatterns - 1
	}
	return index
}

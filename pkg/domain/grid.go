package domain

// GridPosition is a 1-based (row, col) cell within a growspace grid.
type GridPosition struct {
	Row int
	Col int
}

// FirstFreePosition scans row-major from (1,1) and returns the first cell not
// present in occupied. When the grid is saturated it returns the bottom-right
// cell; the caller's occupancy check then surfaces the conflict.
func FirstFreePosition(rows, plantsPerRow int, occupied map[GridPosition]bool) GridPosition {
	for r := 1; r <= rows; r++ {
		for c := 1; c <= plantsPerRow; c++ {
			pos := GridPosition{Row: r, Col: c}
			if !occupied[pos] {
				return pos
			}
		}
	}
	return GridPosition{Row: rows, Col: plantsPerRow}
}

// OccupiedPositions builds the occupancy set for a slice of plants.
func OccupiedPositions(plants []Plant) map[GridPosition]bool {
	occupied := make(map[GridPosition]bool, len(plants))
	for _, p := range plants {
		occupied[GridPosition{Row: p.Row, Col: p.Col}] = true
	}
	return occupied
}

// Grid renders a rows x plantsPerRow matrix of plant IDs with "" marking free
// cells. Plants positioned outside the grid are skipped.
func Grid(rows, plantsPerRow int, plants []Plant) [][]string {
	grid := make([][]string, rows)
	for r := range grid {
		grid[r] = make([]string, plantsPerRow)
	}
	for _, p := range plants {
		if p.Row < 1 || p.Row > rows || p.Col < 1 || p.Col > plantsPerRow {
			continue
		}
		grid[p.Row-1][p.Col-1] = p.ID
	}
	return grid
}

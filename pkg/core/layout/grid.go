package layout

import "math"

// Grid places ids row-major on a square-ish grid: ceil(sqrt(n)) columns,
// one node per cell. The top-left cell's node edge sits at (padding, padding).
func Grid(ids []string, node Size, padding, spacing float64) map[string]Point {
	pos := make(map[string]Point, len(ids))
	if len(ids) == 0 {
		return pos
	}
	cols := int(math.Ceil(math.Sqrt(float64(len(ids)))))
	cellW := node.Width + spacing
	cellH := node.Height + spacing
	for i, id := range ids {
		row, col := i/cols, i%cols
		pos[id] = Point{
			X: padding + node.Width/2 + float64(col)*cellW,
			Y: padding + node.Height/2 + float64(row)*cellH,
		}
	}
	return pos
}

package domain

// CellType 表示网格单元的类型，开局时全部为 CellEmpty。
type CellType string

const CellEmpty CellType = "empty"

// Cell 是网格中的一个单元。
type Cell struct {
	Type CellType `json:"type"`
	HP   int      `json:"hp"`
}

// Grid 是 size×size 的方阵，只作为对局的初始脚手架。
type Grid [][]Cell

// NewGrid 分配一个所有单元均为 {empty, 0} 的方阵。
func NewGrid(size int) Grid {
	if size <= 0 {
		size = DefaultGridSize
	}
	g := make(Grid, size)
	for y := range g {
		row := make([]Cell, size)
		for x := range row {
			row[x] = Cell{Type: CellEmpty}
		}
		g[y] = row
	}
	return g
}

func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]Cell(nil), row...)
	}
	return out
}

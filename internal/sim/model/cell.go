package model

import "fmt"

// Cell is a storage grid coordinate. Height is irrelevant to storage so the grid is 2D.
type Cell struct {
	X int
	Z int
}

func (c Cell) String() string { return fmt.Sprintf("%d,%d", c.X, c.Z) }

func (c Cell) ToArray() [2]int { return [2]int{c.X, c.Z} }

func CellFromArray(a [2]int) Cell { return Cell{X: a[0], Z: a[1]} }

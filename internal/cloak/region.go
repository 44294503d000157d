package cloak

import (
	"gocv.io/x/gocv"
)

// Selection describes the region kept by SelectLargest.
type Selection struct {
	// Area is the cell count of the region before hole filling.
	Area int
	// Detected is true when the region exceeded the minimum area.
	Detected bool
}

// SelectLargest keeps the largest region of mask using p.Params().MinArea.
func (p *Pipeline) SelectLargest(mask gocv.Mat) (gocv.Mat, Selection) {
	return SelectLargest(mask, p.params.MinArea)
}

// SelectLargest finds the 8-connected regions of a CV_8UC1 mask and returns a
// new mask holding only the largest one, drawn as a filled silhouette. When
// no region has more than minArea cells the returned mask is all zero.
// Equal-area regions resolve to the one reached first in row-major order.
func SelectLargest(mask gocv.Mat, minArea int) (gocv.Mat, Selection) {
	rows, cols := mask.Rows(), mask.Cols()
	out := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
	if mask.Empty() {
		return out, Selection{}
	}

	filled, area := largestFilled(mask.ToBytes(), rows, cols)
	if area <= minArea {
		return out, Selection{}
	}

	dst, err := out.DataPtrUint8()
	if err != nil {
		return out, Selection{}
	}
	copy(dst, filled)

	return out, Selection{Area: area, Detected: true}
}

var neighbors8 = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

var neighbors4 = [4][2]int{{-1, 0}, {0, -1}, {0, 1}, {1, 0}}

// largestFilled labels the non-zero cells of a row-major grid and returns the
// filled silhouette of the largest component (255/0) with its cell count.
func largestFilled(cells []uint8, rows, cols int) ([]uint8, int) {
	n := rows * cols
	labels := make([]int32, n)
	stack := make([]int, 0, 1024)

	var (
		next     int32
		best     int32
		bestArea int
	)

	for start := 0; start < n; start++ {
		if cells[start] == 0 || labels[start] != 0 {
			continue
		}

		next++
		labels[start] = next
		area := 0
		stack = append(stack[:0], start)

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++

			r, c := i/cols, i%cols
			for _, d := range neighbors8 {
				nr, nc := r+d[0], c+d[1]
				if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
					continue
				}
				j := nr*cols + nc
				if cells[j] != 0 && labels[j] == 0 {
					labels[j] = next
					stack = append(stack, j)
				}
			}
		}

		if area > bestArea {
			best, bestArea = next, area
		}
	}

	filled := make([]uint8, n)
	if bestArea == 0 {
		return filled, 0
	}

	// Cells 4-connected to the border without crossing the chosen component are
	// outside it. Everything else is the component or a hole inside it.
	outside := make([]bool, n)
	stack = stack[:0]
	push := func(i int) {
		if labels[i] != best && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for c := 0; c < cols; c++ {
		push(c)
		push((rows-1)*cols + c)
	}
	for r := 0; r < rows; r++ {
		push(r * cols)
		push(r*cols + cols - 1)
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		r, c := i/cols, i%cols
		for _, d := range neighbors4 {
			nr, nc := r+d[0], c+d[1]
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			push(nr*cols + nc)
		}
	}

	for i := range filled {
		if !outside[i] {
			filled[i] = 255
		}
	}

	return filled, bestArea
}

package detect

import (
	"image"
)

// mask is a binary raster in local coordinates (origin at 0,0).
type mask struct {
	w, h int
	bits []bool
}

func newMask(r image.Rectangle) *mask {
	return &mask{w: r.Dx(), h: r.Dy(), bits: make([]bool, r.Dx()*r.Dy())}
}

func (m *mask) set(x, y int)     { m.bits[y*m.w+x] = true }
func (m *mask) at(x, y int) bool { return m.bits[y*m.w+x] }
func (m *mask) in(x, y int) bool { return x >= 0 && y >= 0 && x < m.w && y < m.h }

// Component is the bounding box of one external foreground region.
type Component struct {
	MinX, MinY int
	MaxX, MaxY int
	Width      int
	Height     int
	pixels     int
}

var (
	neighbors8 = [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	neighbors4 = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
)

// outside marks background pixels reachable from the image border through
// 4-connected background. Background not reached is a hole inside some
// foreground region.
func outside(m *mask) []bool {
	seen := make([]bool, len(m.bits))
	var stack []image.Point
	push := func(x, y int) {
		i := y*m.w + x
		if m.bits[i] || seen[i] {
			return
		}
		seen[i] = true
		stack = append(stack, image.Point{X: x, Y: y})
	}
	for x := 0; x < m.w; x++ {
		push(x, 0)
		push(x, m.h-1)
	}
	for y := 0; y < m.h; y++ {
		push(0, y)
		push(m.w-1, y)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range neighbors4 {
			nx, ny := p.X+d[0], p.Y+d[1]
			if m.in(nx, ny) {
				push(nx, ny)
			}
		}
	}
	return seen
}

// walkExternal visits 8-connected foreground components whose border faces
// the outer background or the image edge, matching external contour
// retrieval. Components nested in another component's hole are skipped.
// Visiting stops when fn returns false.
func walkExternal(m *mask, fn func(Component) bool) {
	if m.w == 0 || m.h == 0 {
		return
	}
	out := outside(m)
	visited := make([]bool, len(m.bits))

	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			i := y*m.w + x
			if !m.bits[i] || visited[i] {
				continue
			}
			comp, external := fill(m, out, visited, x, y)
			if external && !fn(comp) {
				return
			}
		}
	}
}

// fill flood-fills one component from (startX, startY), iteratively to
// avoid deep recursion on large marks.
func fill(m *mask, out, visited []bool, startX, startY int) (Component, bool) {
	comp := Component{MinX: startX, MinY: startY, MaxX: startX, MaxY: startY}
	external := false

	visited[startY*m.w+startX] = true
	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		comp.pixels++

		if p.X < comp.MinX {
			comp.MinX = p.X
		}
		if p.X > comp.MaxX {
			comp.MaxX = p.X
		}
		if p.Y < comp.MinY {
			comp.MinY = p.Y
		}
		if p.Y > comp.MaxY {
			comp.MaxY = p.Y
		}

		if !external {
			for _, d := range neighbors4 {
				nx, ny := p.X+d[0], p.Y+d[1]
				if !m.in(nx, ny) || out[ny*m.w+nx] {
					external = true
					break
				}
			}
		}

		for _, d := range neighbors8 {
			nx, ny := p.X+d[0], p.Y+d[1]
			if !m.in(nx, ny) {
				continue
			}
			j := ny*m.w + nx
			if m.bits[j] && !visited[j] {
				visited[j] = true
				stack = append(stack, image.Point{X: nx, Y: ny})
			}
		}
	}

	comp.Width = comp.MaxX - comp.MinX + 1
	comp.Height = comp.MaxY - comp.MinY + 1
	return comp, external
}

package internal

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// FaceOvalEdges connects the face-mesh contour landmarks
var FaceOvalEdges = [][2]int{
	{10, 338}, {338, 297}, {297, 332}, {332, 284}, {284, 251}, {251, 389},
	{389, 356}, {356, 454}, {454, 323}, {323, 361}, {361, 288}, {288, 397},
	{397, 365}, {365, 379}, {379, 378}, {378, 400}, {400, 377}, {377, 152},
	{152, 148}, {148, 176}, {176, 149}, {149, 150}, {150, 136}, {136, 172},
	{172, 58}, {58, 132}, {132, 93}, {93, 234}, {234, 127}, {127, 162},
	{162, 21}, {21, 54}, {54, 103}, {103, 67}, {67, 109}, {109, 10},
}

// OverlayStyle places and paints landmark geometry on the canvas.
// A landmark lands at (X*Scale+OffsetX, Y*Scale+OffsetY) in canvas-relative units.
type OverlayStyle struct {
	Scale          float64
	OffsetX        float64
	OffsetY        float64
	DotRadius      int
	DotColor       color.RGBA
	ConnectorColor color.RGBA
	Connectors     [][2]int
}

// DefaultOverlayStyle shrinks the face into the bottom-right corner
func DefaultOverlayStyle(scale, offset float64) OverlayStyle {
	return OverlayStyle{
		Scale:          scale,
		OffsetX:        offset,
		OffsetY:        offset,
		DotRadius:      1,
		DotColor:       color.RGBA{R: 0x30, G: 0xFF, B: 0x30, A: 0xFF},
		ConnectorColor: color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF},
		Connectors:     FaceOvalEdges,
	}
}

// Project maps a normalized landmark to canvas-relative coordinates
func (s OverlayStyle) Project(l Landmark) (float64, float64) {
	return l.X*s.Scale + s.OffsetX, l.Y*s.Scale + s.OffsetY
}

// Compositor owns the output canvas. RenderTick is a pure function of its inputs;
// nothing carries over between ticks except the pixels of the last render.
type Compositor struct {
	style OverlayStyle

	mu       sync.RWMutex
	canvas   *image.RGBA
	rendered bool
}

// NewCompositor creates a cleared w x h canvas
func NewCompositor(w, h int, style OverlayStyle) *Compositor {
	return &Compositor{
		style:  style,
		canvas: image.NewRGBA(image.Rect(0, 0, w, h)),
	}
}

// Bounds returns the canvas bounds
func (c *Compositor) Bounds() image.Rectangle {
	return c.canvas.Bounds()
}

// RenderTick clears the canvas, draws background scaled to the canvas, then the
// overlay for every face in result. A nil background leaves the canvas black; an
// empty result draws background only.
func (c *Compositor) RenderTick(background image.Image, result DetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dst := c.canvas
	bounds := dst.Bounds()
	draw.Draw(dst, bounds, image.Black, image.Point{}, draw.Src)

	if background != nil {
		if background.Bounds().Size() == bounds.Size() {
			draw.Draw(dst, bounds, background, background.Bounds().Min, draw.Src)
		} else {
			xdraw.ApproxBiLinear.Scale(dst, bounds, background, background.Bounds(), xdraw.Src, nil)
		}
	}

	for _, face := range result.Faces {
		c.drawFace(face)
	}
	c.rendered = true
}

func (c *Compositor) drawFace(face LandmarkSet) {
	w := float64(c.canvas.Bounds().Dx())
	h := float64(c.canvas.Bounds().Dy())

	points := make([]image.Point, len(face))
	for i, l := range face {
		x, y := c.style.Project(l)
		points[i] = image.Pt(int(math.Round(x*w)), int(math.Round(y*h)))
	}

	for _, e := range c.style.Connectors {
		if e[0] < 0 || e[1] < 0 || e[0] >= len(points) || e[1] >= len(points) {
			continue
		}
		drawLine(c.canvas, points[e[0]], points[e[1]], c.style.ConnectorColor)
	}
	for _, p := range points {
		drawDot(c.canvas, p, c.style.DotRadius, c.style.DotColor)
	}
}

// Snapshot returns a copy of the canvas, or nil before the first render
func (c *Compositor) Snapshot() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.rendered {
		return nil
	}
	cp := image.NewRGBA(c.canvas.Bounds())
	copy(cp.Pix, c.canvas.Pix)
	return cp
}

// View calls fn with the canvas under a read lock. fn must not retain img.
func (c *Compositor) View(fn func(img *image.RGBA) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.canvas)
}

// Clear blanks the canvas and forgets that anything was rendered
func (c *Compositor) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.canvas.Pix {
		c.canvas.Pix[i] = 0
	}
	c.rendered = false
}

func drawDot(img *image.RGBA, p image.Point, r int, col color.RGBA) {
	b := img.Bounds()
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			q := image.Pt(p.X+dx, p.Y+dy)
			if q.In(b) {
				img.SetRGBA(q.X, q.Y, col)
			}
		}
	}
}

// drawLine rasterizes a 1px segment with Bresenham's algorithm
func drawLine(img *image.RGBA, a, b image.Point, col color.RGBA) {
	bounds := img.Bounds()
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	x, y := a.X, a.Y
	for {
		if image.Pt(x, y).In(bounds) {
			img.SetRGBA(x, y, col)
		}
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

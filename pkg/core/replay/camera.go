package replay

import (
	"time"

	"github.com/matzehuels/pdaviz/pkg/core/layout"
)

// FollowDuration is the length of a camera follow animation.
const FollowDuration = 200 * time.Millisecond

// Camera is the center of a viewport, optionally animating toward a target.
//
// Animations are evaluated lazily from timestamps; a new Follow supersedes
// any animation in flight by starting from wherever the camera currently is.
type Camera struct {
	from     layout.Point
	to       layout.Point
	start    time.Time
	duration time.Duration
	gen      uint64
}

// NewCamera returns a camera resting at p.
func NewCamera(p layout.Point) *Camera {
	return &Camera{from: p, to: p}
}

// Follow starts an animation from the camera's position at now to target.
// It returns the animation generation; a later call increments it.
func (c *Camera) Follow(target layout.Point, now time.Time) uint64 {
	c.from = c.At(now)
	c.to = target
	c.start = now
	c.duration = FollowDuration
	c.gen++
	return c.gen
}

// Jump moves the camera to p without animation, superseding any follow.
func (c *Camera) Jump(p layout.Point) {
	c.from, c.to = p, p
	c.duration = 0
	c.gen++
}

// At returns the camera center at time now, easing in and out.
func (c *Camera) At(now time.Time) layout.Point {
	if c.duration <= 0 || !now.Before(c.start.Add(c.duration)) {
		return c.to
	}
	t := float64(now.Sub(c.start)) / float64(c.duration)
	if t < 0 {
		t = 0
	}
	e := t * t * (3 - 2*t)
	return layout.Point{
		X: c.from.X + (c.to.X-c.from.X)*e,
		Y: c.from.Y + (c.to.Y-c.from.Y)*e,
	}
}

// Target returns where the camera is heading.
func (c *Camera) Target() layout.Point { return c.to }

// Animating reports whether an animation is still running at now.
func (c *Camera) Animating(now time.Time) bool {
	return c.duration > 0 && now.Before(c.start.Add(c.duration))
}

// Generation identifies the latest Follow or Jump.
func (c *Camera) Generation() uint64 { return c.gen }

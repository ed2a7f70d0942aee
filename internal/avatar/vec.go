package avatar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vec3d is a position or offset in world coordinates.
type Vec3d struct {
	X, Y, Z float64
}

// Origin is the zero vector.
var Origin = Vec3d{}

// String formats the vector as "[x y z]" with each component rounded half
// up to two decimal places, e.g. "[2.0 -0.25 64.5]". Zero never prints
// with a sign.
func (v Vec3d) String() string {
	return "[" + formatCoord(v.X) + " " + formatCoord(v.Y) + " " + formatCoord(v.Z) + "]"
}

func formatCoord(c float64) string {
	r := math.Floor(c*100+0.5) / 100
	if r == 0 {
		r = 0
	}
	s := strconv.FormatFloat(r, 'f', -1, 64)
	// NaN and ±Inf have no fractional part to add
	if !strings.ContainsAny(s, ".naN") {
		s += ".0"
	}
	return s
}

func (v Vec3d) Add(o Vec3d) Vec3d {
	return Vec3d{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3d) Sub(o Vec3d) Vec3d {
	return Vec3d{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3d) Scale(f float64) Vec3d {
	return Vec3d{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

func (v Vec3d) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Floored returns the block containing v.
func (v Vec3d) Floored() Vec3i {
	return Vec3i{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// Vec3i is a block position.
type Vec3i struct {
	X, Y, Z int
}

func (v Vec3i) String() string {
	return fmt.Sprintf("[%d %d %d]", v.X, v.Y, v.Z)
}

// Look is a view direction in radians. Yaw 0 faces south (+Z) and grows
// clockwise seen from above; pitch 0 is level and positive looks down.
type Look struct {
	Yaw, Pitch float64
}

// LookFromDegrees converts the protocol's degree angles.
func LookFromDegrees(yaw, pitch float32) Look {
	return Look{
		Yaw:   float64(yaw) * math.Pi / 180,
		Pitch: float64(pitch) * math.Pi / 180,
	}
}

func (l Look) YawDegrees() float64 { return l.Yaw * 180 / math.Pi }

func (l Look) PitchDegrees() float64 { return l.Pitch * 180 / math.Pi }

var compass = [8]string{"S", "SW", "W", "NW", "N", "NE", "E", "SE"}

// Compass returns the nearest of the eight compass directions for the yaw.
func (l Look) Compass() string {
	i := int(math.Round(l.YawDegrees()/45)) % 8
	if i < 0 {
		i += 8
	}
	return compass[i]
}

// String formats the look like "(90°W, -10°)".
func (l Look) String() string {
	yaw := int(math.Round(l.YawDegrees())) % 360
	pitch := int(math.Round(l.PitchDegrees())) % 360
	return fmt.Sprintf("(%d°%s, %d°)", yaw, l.Compass(), pitch)
}

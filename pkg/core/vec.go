// pkg/core/vec.go
package core

// Vec3 is a world-space position in Angstrom.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// SqrLen returns the squared length of v.
func (v Vec3) SqrLen() float64 {
	return v.Dot(v)
}

// Snapshot holds the world positions of every atom in a session, index-aligned
// with the session's flat atom ordering. A published snapshot is never mutated.
type Snapshot []Vec3

// PositionProvider fills dst with the current world positions of all atoms in
// the flat ordering and returns it, growing dst if needed.
type PositionProvider interface {
	WorldPositions(dst []Vec3) []Vec3
}

// PositionProviderFunc adapts a plain function to PositionProvider.
type PositionProviderFunc func(dst []Vec3) []Vec3

// WorldPositions calls f(dst).
func (f PositionProviderFunc) WorldPositions(dst []Vec3) []Vec3 {
	return f(dst)
}

// Package physics wraps a Box2D world behind integer body handles.
//
// The World owns every body and fixture. Callers hold BodyHandle values and go
// through World methods to read or mutate state, so no Box2D pointer escapes
// this package.
package physics

import (
	"errors"
	"fmt"

	"github.com/ByteArena/box2d"

	"github.com/Faultbox/molee/pkg/math"
)

// Physics errors.
var (
	ErrUnknownBody  = errors.New("unknown body handle")
	ErrInvalidShape = errors.New("invalid polygon shape")
)

// BodyHandle identifies a body inside a World. The zero value is never issued.
type BodyHandle int

// FixtureParams holds surface properties applied to attached fixtures.
type FixtureParams struct {
	Density     float64
	Friction    float64
	Restitution float64
}

// DefaultFixtureParams returns the surface used for terrain fixtures.
func DefaultFixtureParams() FixtureParams {
	return FixtureParams{
		Density:     0,
		Friction:    0.6,
		Restitution: 0,
	}
}

// ProjectileFixture is the surface of projectile bodies: light and barely bouncy.
var ProjectileFixture = FixtureParams{Density: 0.1, Friction: 0.2, Restitution: 0.1}

// StepConfig controls solver iterations per Step.
type StepConfig struct {
	VelocityIterations int
	PositionIterations int
}

// World is an arena of Box2D bodies addressed by handle.
type World struct {
	b2     box2d.B2World
	bodies map[BodyHandle]*box2d.B2Body
	next   BodyHandle
	step   StepConfig
}

// NewWorld creates an empty world with the given gravity.
func NewWorld(gravity math.Vec2) *World {
	return &World{
		b2:     box2d.MakeB2World(toB2(gravity)),
		bodies: make(map[BodyHandle]*box2d.B2Body),
		step:   StepConfig{VelocityIterations: 8, PositionIterations: 3},
	}
}

// SetStepConfig overrides the solver iteration counts.
func (w *World) SetStepConfig(cfg StepConfig) {
	if cfg.VelocityIterations > 0 {
		w.step.VelocityIterations = cfg.VelocityIterations
	}
	if cfg.PositionIterations > 0 {
		w.step.PositionIterations = cfg.PositionIterations
	}
}

func (w *World) insert(b *box2d.B2Body) BodyHandle {
	w.next++
	h := w.next
	b.SetUserData(h)
	w.bodies[h] = b
	return h
}

func (w *World) body(h BodyHandle) (*box2d.B2Body, error) {
	b, ok := w.bodies[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBody, h)
	}
	return b, nil
}

// CreateStaticBody creates a static body at pos.
func (w *World) CreateStaticBody(pos math.Vec2) BodyHandle {
	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_staticBody
	def.Position = toB2(pos)
	return w.insert(w.b2.CreateBody(&def))
}

// CreateDynamicBox creates a non-rotating dynamic box body centered on pos.
func (w *World) CreateDynamicBox(pos math.Vec2, halfW, halfH float64, params FixtureParams) BodyHandle {
	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_dynamicBody
	def.Position = toB2(pos)
	def.FixedRotation = true
	b := w.b2.CreateBody(&def)

	shape := box2d.MakeB2PolygonShape()
	shape.SetAsBox(halfW, halfH)
	fd := box2d.MakeB2FixtureDef()
	fd.Shape = &shape
	fd.Density = params.Density
	fd.Friction = params.Friction
	fd.Restitution = params.Restitution
	b.CreateFixtureFromDef(&fd)

	return w.insert(b)
}

// CreateProjectile creates a circular bullet body centered on pos and
// launches it with velocity vel. Bullets get continuous collision against
// every other body.
func (w *World) CreateProjectile(pos, vel math.Vec2, radius float64) BodyHandle {
	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_dynamicBody
	def.Position = toB2(pos)
	def.Bullet = true
	b := w.b2.CreateBody(&def)

	shape := box2d.MakeB2CircleShape()
	shape.M_radius = radius
	fd := box2d.MakeB2FixtureDef()
	fd.Shape = &shape
	fd.Density = ProjectileFixture.Density
	fd.Friction = ProjectileFixture.Friction
	fd.Restitution = ProjectileFixture.Restitution
	b.CreateFixtureFromDef(&fd)

	b.SetLinearVelocity(toB2(vel))
	return w.insert(b)
}

// IsBullet reports whether h uses continuous collision.
func (w *World) IsBullet(h BodyHandle) bool {
	b, err := w.body(h)
	if err != nil {
		return false
	}
	return b.IsBullet()
}

// SetGravityScale scales the gravity applied to h; zero makes it float.
func (w *World) SetGravityScale(h BodyHandle, s float64) error {
	b, err := w.body(h)
	if err != nil {
		return err
	}
	b.SetGravityScale(s)
	return nil
}

// GravityScale returns the gravity multiplier of h.
func (w *World) GravityScale(h BodyHandle) (float64, error) {
	b, err := w.body(h)
	if err != nil {
		return 0, err
	}
	return b.GetGravityScale(), nil
}

// SetLinearVelocity sets the velocity of h's center of mass.
func (w *World) SetLinearVelocity(h BodyHandle, v math.Vec2) error {
	b, err := w.body(h)
	if err != nil {
		return err
	}
	b.SetLinearVelocity(toB2(v))
	return nil
}

// LinearVelocity returns the velocity of h's center of mass.
func (w *World) LinearVelocity(h BodyHandle) (math.Vec2, error) {
	b, err := w.body(h)
	if err != nil {
		return math.Vec2{}, err
	}
	return fromB2(b.GetLinearVelocity()), nil
}

// InContact reports whether a fixture of a currently touches a fixture of b.
// Contacts are updated by Step.
func (w *World) InContact(a, b BodyHandle) bool {
	ba, err := w.body(a)
	if err != nil {
		return false
	}
	bb, err := w.body(b)
	if err != nil {
		return false
	}
	for e := ba.GetContactList(); e != nil; e = e.Next {
		if e.Other == bb && e.Contact.IsTouching() {
			return true
		}
	}
	return false
}

// AttachPolygon validates verts as a convex polygon and attaches it to h.
// Nothing is attached when ErrInvalidShape is returned.
func (w *World) AttachPolygon(h BodyHandle, verts []math.Vec2, params FixtureParams) error {
	b, err := w.body(h)
	if err != nil {
		return err
	}
	shape, ok := buildPolygon(verts)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidShape, verts)
	}
	fd := box2d.MakeB2FixtureDef()
	fd.Shape = shape
	fd.Density = params.Density
	fd.Friction = params.Friction
	fd.Restitution = params.Restitution
	b.CreateFixtureFromDef(&fd)
	return nil
}

// ValidatePolygon reports whether verts form a polygon Box2D accepts.
func ValidatePolygon(verts []math.Vec2) bool {
	_, ok := buildPolygon(verts)
	return ok
}

// buildPolygon runs Box2D's own hull construction and validation. The port
// asserts with panics on degenerate hulls; those are reported as invalid.
func buildPolygon(verts []math.Vec2) (shape *box2d.B2PolygonShape, ok bool) {
	if len(verts) < 3 || len(verts) > box2d.B2_maxPolygonVertices {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			shape, ok = nil, false
		}
	}()

	pts := make([]box2d.B2Vec2, len(verts))
	for i, v := range verts {
		pts[i] = toB2(v)
	}
	s := box2d.MakeB2PolygonShape()
	s.Set(pts, len(pts))
	if s.M_count != len(verts) || !s.Validate() {
		return nil, false
	}
	return &s, true
}

// FixtureCount returns the number of fixtures attached to h.
func (w *World) FixtureCount(h BodyHandle) int {
	b, err := w.body(h)
	if err != nil {
		return 0
	}
	n := 0
	for f := b.GetFixtureList(); f != nil; f = f.GetNext() {
		n++
	}
	return n
}

// FixturePolygons returns the world-space vertices of every polygon fixture on h.
func (w *World) FixturePolygons(h BodyHandle) ([][]math.Vec2, error) {
	b, err := w.body(h)
	if err != nil {
		return nil, err
	}
	xf := b.GetTransform()
	var out [][]math.Vec2
	for f := b.GetFixtureList(); f != nil; f = f.GetNext() {
		poly, ok := f.GetShape().(*box2d.B2PolygonShape)
		if !ok {
			continue
		}
		verts := make([]math.Vec2, poly.M_count)
		for i := 0; i < poly.M_count; i++ {
			verts[i] = fromB2(box2d.B2TransformVec2Mul(xf, poly.M_vertices[i]))
		}
		out = append(out, verts)
	}
	return out, nil
}

// BodyPosition returns the world position of h.
func (w *World) BodyPosition(h BodyHandle) (math.Vec2, error) {
	b, err := w.body(h)
	if err != nil {
		return math.Vec2{}, err
	}
	return fromB2(b.GetPosition()), nil
}

// IsStatic reports whether h is a static body.
func (w *World) IsStatic(h BodyHandle) bool {
	b, err := w.body(h)
	if err != nil {
		return false
	}
	return b.GetType() == box2d.B2BodyType.B2_staticBody
}

// BodyCount returns the number of live bodies.
func (w *World) BodyCount() int {
	return len(w.bodies)
}

// DestroyBody removes h and all of its fixtures from the world.
func (w *World) DestroyBody(h BodyHandle) error {
	b, err := w.body(h)
	if err != nil {
		return err
	}
	w.b2.DestroyBody(b)
	delete(w.bodies, h)
	return nil
}

// Step advances the simulation by dt seconds.
func (w *World) Step(dt float64) {
	w.b2.Step(dt, w.step.VelocityIterations, w.step.PositionIterations)
}

func toB2(v math.Vec2) box2d.B2Vec2 {
	return box2d.MakeB2Vec2(v.X, v.Y)
}

func fromB2(v box2d.B2Vec2) math.Vec2 {
	return math.Vec2{X: v.X, Y: v.Y}
}

package terrain

import (
	"go.uber.org/zap"

	"github.com/Faultbox/molee/internal/logger"
	"github.com/Faultbox/molee/internal/physics"
	"github.com/Faultbox/molee/pkg/math"
)

// BuildBody creates one static body at the world origin and attaches a
// polygon fixture per triangle. Triangles that fail validation are logged and
// skipped; the body is returned even when no fixture could be attached.
func BuildBody(world *physics.World, triangles []Triangle, params physics.FixtureParams) physics.BodyHandle {
	log := logger.Named(logger.StageBody)
	body := world.CreateStaticBody(math.Vec2{})

	skipped := 0
	for _, t := range triangles {
		if t.IsDegenerate() {
			log.Warn("invalid triangle for polygon shape", zap.Any("triangle", t))
			skipped++
			continue
		}
		if err := world.AttachPolygon(body, t.Vertices(), params); err != nil {
			log.Warn("invalid triangle for polygon shape", zap.Any("triangle", t), zap.Error(err))
			skipped++
		}
	}

	log.Info("terrain body built",
		zap.Int("fixtures", world.FixtureCount(body)),
		zap.Int("triangles", len(triangles)),
		zap.Int("skipped", skipped))
	return body
}

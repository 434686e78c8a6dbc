package scoring

// Default scoring configuration constants.
const (
	DefaultBasePoints = 10
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBasePoints sets the points awarded for a correct guess with no streak.
func WithBasePoints(points int64) Option {
	return func(e *Engine) {
		if points > 0 {
			e.basePoints = points
		}
	}
}

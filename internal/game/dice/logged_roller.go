package dice

import "go.uber.org/zap"

// Roller wraps a Source and a logger so every roll leaves an audit record at
// debug level (purpose, expression, dice, modifier, total).
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs to logger.
//
// Precondition: src must be non-nil. A nil logger disables logging.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Source returns the Source the roller draws from.
func (r *Roller) Source() Source { return r.src }

// RollExpr parses expr, rolls it and logs the result tagged with purpose.
//
// Postcondition: Returns a RollResult or a parse error; nothing is logged on error.
func (r *Roller) RollExpr(purpose, expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	result := Roll(e, r.src)
	r.logger.Debug("dice roll",
		zap.String("purpose", purpose),
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result, nil
}

// Chance reports whether a roll against probability p succeeds.
// p <= 0 never succeeds; p >= 1 always does.
func (r *Roller) Chance(purpose string, p float64) bool {
	u := r.src.Float64()
	ok := u < p
	r.logger.Debug("chance roll",
		zap.String("purpose", purpose),
		zap.Float64("p", p),
		zap.Float64("roll", u),
		zap.Bool("success", ok),
	)
	return ok
}

package encounter

import (
	"errors"
	"fmt"
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/game/combat"
	"github.com/cory-johannsen/idlebattle/internal/game/combatlog"
	"github.com/cory-johannsen/idlebattle/internal/game/dice"
	"github.com/cory-johannsen/idlebattle/internal/game/inventory"
	"github.com/cory-johannsen/idlebattle/internal/scripting"
)

// ErrTemplateNotFound is returned by Fight for an unknown template id.
var ErrTemplateNotFound = errors.New("encounter template not found")

// AdjustGoldHook is the Lua global called as adjust_gold(gold, template_id, level)
// after gold is rolled. A numeric return replaces the gold amount (negative
// values clamp to 0); anything else leaves it unchanged.
const AdjustGoldHook = "adjust_gold"

// Outcome is the result of one encounter.
type Outcome struct {
	Result    combat.Result
	SessionID string
	// Victory is true when the player won. Rewards in Result are only earned on victory.
	Victory bool
}

// Service resolves templated encounters.
type Service struct {
	templates map[string]*Template
	weapons   *inventory.Registry
	store     *combatlog.Storage
	roller    *dice.Roller
	scripts   *scripting.Manager
	logger    *zap.Logger
	engineOps []combat.Option
}

// Option configures a Service.
type Option func(*Service)

// WithScripts enables the adjust_gold reward hook.
func WithScripts(m *scripting.Manager) Option {
	return func(s *Service) { s.scripts = m }
}

// WithLogger sets the service and engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngineOptions appends options applied to every engine the service creates.
func WithEngineOptions(opts ...combat.Option) Option {
	return func(s *Service) { s.engineOps = append(s.engineOps, opts...) }
}

// NewService indexes templates and checks that every weapon they reference exists.
//
// Precondition: weapons, store and roller must be non-nil.
// Postcondition: Returns a ready Service or an error naming the first
// duplicate template or unknown weapon.
func NewService(templates []*Template, weapons *inventory.Registry, store *combatlog.Storage, roller *dice.Roller, opts ...Option) (*Service, error) {
	s := &Service{
		templates: make(map[string]*Template, len(templates)),
		weapons:   weapons,
		store:     store,
		roller:    roller,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, t := range templates {
		if _, dup := s.templates[t.ID]; dup {
			return nil, fmt.Errorf("encounter template %q registered twice", t.ID)
		}
		if t.WeaponID != "" {
			if _, ok := weapons.Weapon(t.WeaponID); !ok {
				return nil, fmt.Errorf("encounter template %q: unknown weapon %q", t.ID, t.WeaponID)
			}
		}
		s.templates[t.ID] = t
	}
	return s, nil
}

// TemplateIDs returns every known template id in ascending order.
func (s *Service) TemplateIDs() []string {
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Enemy builds a fresh combatant from the template with the given id.
func (s *Service) Enemy(templateID string) (combat.Combatant, error) {
	t, ok := s.templates[templateID]
	if !ok {
		return combat.Combatant{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, templateID)
	}
	enemy := combat.Combatant{ID: t.ID, Name: t.Name, Stats: t.Stats}
	if t.WeaponID != "" {
		def, _ := s.weapons.Weapon(t.WeaponID)
		enemy.Weapon = def.CombatWeapon()
	}
	return enemy, nil
}

// Fight pits player against a fresh instance of templateID, rolls the
// template's rewards, and stores the combat log under player.ID.
//
// Postcondition: On success the log is retrievable with
// Storage.CombatLogs(player.ID, Outcome.SessionID). Errors wrap
// ErrTemplateNotFound or combat.ErrInvalidCombatant; nothing is stored then.
func (s *Service) Fight(player combat.Combatant, templateID string) (Outcome, error) {
	enemy, err := s.Enemy(templateID)
	if err != nil {
		return Outcome{}, err
	}
	tmpl := s.templates[templateID]

	rewards, err := s.RollRewards(tmpl)
	if err != nil {
		return Outcome{}, err
	}

	engine := combat.NewEngine(append([]combat.Option{combat.WithLogger(s.logger)}, s.engineOps...)...)
	result, err := engine.ResolveCombat(player, enemy, rewards)
	if err != nil {
		return Outcome{}, fmt.Errorf("encounter %q: %w", templateID, err)
	}

	sessionID := s.store.StoreCombatLogs(player.ID, result.Logs)
	out := Outcome{Result: result, SessionID: sessionID, Victory: result.WinnerID == player.ID}
	s.logger.Info("encounter resolved",
		zap.String("player", player.ID),
		zap.String("template", templateID),
		zap.Bool("victory", out.Victory),
		zap.Int("turns", result.Turns),
		zap.String("session", sessionID),
	)
	return out, nil
}

// RollRewards rolls the template's reward table with the service roller and
// applies the adjust_gold hook when scripts are configured.
func (s *Service) RollRewards(t *Template) (combat.Rewards, error) {
	rewards := combat.Rewards{Experience: t.Rewards.Experience}
	if t.Rewards.Gold != "" {
		res, err := s.roller.RollExpr("gold:"+t.ID, t.Rewards.Gold)
		if err != nil {
			return combat.Rewards{}, fmt.Errorf("encounter template %q: rolling gold: %w", t.ID, err)
		}
		rewards.Gold = max(res.Total(), 0)
	}
	rewards.Gold = s.adjustGold(t, rewards.Gold)

	for _, drop := range t.Rewards.Items {
		if s.roller.Chance("drop:"+drop.ItemID, drop.Chance) {
			rewards.ItemIDs = append(rewards.ItemIDs, drop.ItemID)
		}
	}
	return rewards, nil
}

func (s *Service) adjustGold(t *Template, gold int) int {
	if s.scripts == nil {
		return gold
	}
	ret, ok := s.scripts.CallHook(AdjustGoldHook, lua.LNumber(gold), lua.LString(t.ID), lua.LNumber(t.Level))
	if !ok {
		return gold
	}
	n, isNum := ret.(lua.LNumber)
	if !isNum {
		return gold
	}
	return max(int(math.Round(float64(n))), 0)
}

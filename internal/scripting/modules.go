package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules installs the engine table into L:
//
//	engine.roll(expr)  -> total of a dice expression, raises on a bad expression
//	engine.chance(p)   -> true with probability p
//	engine.log(msg)    -> info log line tagged with the script origin
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetFuncs(engine, map[string]lua.LGFunction{
		"roll":   m.luaRoll,
		"chance": m.luaChance,
		"log":    m.luaLog,
	})
	L.SetGlobal("engine", engine)
}

func (m *Manager) luaRoll(L *lua.LState) int {
	expr := L.CheckString(1)
	res, err := m.roller.RollExpr("script", expr)
	if err != nil {
		L.RaiseError("engine.roll: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(res.Total()))
	return 1
}

func (m *Manager) luaChance(L *lua.LState) int {
	p := float64(L.CheckNumber(1))
	L.Push(lua.LBool(m.roller.Chance("script", p)))
	return 1
}

func (m *Manager) luaLog(L *lua.LState) int {
	m.logger.Info("script log", zap.String("msg", L.CheckString(1)))
	return 0
}

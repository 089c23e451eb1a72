package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/game/dice"
)

// Manager owns one sandboxed LState holding the global hook scripts.
//
// An LState is single-threaded, so every CallHook holds the manager mutex
// for the duration of the Lua call.
type Manager struct {
	mu        sync.Mutex
	state     *lua.LState
	instLimit int
	roller    *dice.Roller
	logger    *zap.Logger
}

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: roller must be non-nil. A nil logger discards output.
// instLimit <= 0 uses DefaultInstructionLimit per hook call.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{roller: roller, logger: logger, instLimit: instLimit}
}

// LoadGlobal builds a fresh VM, registers the engine module, and executes
// every *.lua file in scriptDir in lexicographic order. A previously loaded
// VM is replaced only once the new one has loaded cleanly.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Returns error on read or Lua load failure; the old VM stays active.
func (m *Manager) LoadGlobal(scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(files)

	L := NewSandboxedState()
	m.RegisterModules(L)
	for _, path := range files {
		err := RunLimited(L, m.instLimit, func() error { return L.DoFile(path) })
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	old := m.state
	m.state = L
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}
	m.logger.Info("scripts loaded", zap.String("dir", scriptDir), zap.Int("files", len(files)))
	return nil
}

// CallHook calls the named global Lua function. It returns (LNil, false) when
// no scripts are loaded, the hook is undefined, or the hook fails at runtime;
// runtime failures, including an exhausted instruction budget, are logged at
// warn and never propagated.
//
// Postcondition: ok is true iff the hook ran to completion.
func (m *Manager) CallHook(hook string, args ...lua.LValue) (ret lua.LValue, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return lua.LNil, false
	}
	L := m.state
	fn := L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, false
	}

	err := RunLimited(L, m.instLimit, func() error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		L.SetTop(0)
		return lua.LNil, false
	}
	ret = L.Get(-1)
	L.Pop(1)
	return ret, true
}

// HasHook reports whether a global function named hook is defined.
func (m *Manager) HasHook(hook string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != nil && m.state.GetGlobal(hook).Type() == lua.LTFunction
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.state.Close()
		m.state = nil
	}
}

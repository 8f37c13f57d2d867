package scripting

import (
	"fmt"
	"math"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// BonusFunc is the Lua global a curve script must define: bonus(level) -> number.
const BonusFunc = "bonus"

// Curve maps a level to the base max power granted on reaching it.
type Curve interface {
	Bonus(level uint32) float32
}

// LuaCurve evaluates a script-defined level-up bonus.
//
// Script errors, a spent instruction budget and non-numeric, negative or
// non-finite results are logged at Warn level and answered by the fallback
// curve. LuaCurve is safe for concurrent use; calls are serialized on its VM.
type LuaCurve struct {
	mu        sync.Mutex
	L         *lua.LState
	fn        lua.LValue
	instLimit int
	fallback  Curve
	logger    *zap.Logger
}

// LoadCurve reads the script at path and returns a LuaCurve over it.
//
// Precondition: fallback and logger must be non-nil.
// Postcondition: Returns an error if the file cannot be read or does not
// define a bonus function.
func LoadCurve(path string, instLimit int, fallback Curve, logger *zap.Logger) (*LuaCurve, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading curve %q: %w", path, err)
	}
	c, err := NewCurve(string(src), instLimit, fallback, logger)
	if err != nil {
		return nil, fmt.Errorf("scripting: loading curve %q: %w", path, err)
	}
	return c, nil
}

// NewCurve executes src in a fresh sandbox and binds its bonus function.
//
// Precondition: fallback and logger must be non-nil.
// Postcondition: Returns an error on a Lua load failure or a missing bonus function.
func NewCurve(src string, instLimit int, fallback Curve, logger *zap.Logger) (*LuaCurve, error) {
	if fallback == nil {
		panic("scripting.NewCurve: fallback must not be nil")
	}
	if logger == nil {
		panic("scripting.NewCurve: logger must not be nil")
	}
	L := NewSandboxedState()
	if err := RunLimited(L, instLimit, func() error { return L.DoString(src) }); err != nil {
		L.Close()
		return nil, err
	}
	fn := L.GetGlobal(BonusFunc)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("script does not define function %q", BonusFunc)
	}
	return &LuaCurve{
		L:         L,
		fn:        fn,
		instLimit: instLimit,
		fallback:  fallback,
		logger:    logger,
	}, nil
}

// Bonus calls bonus(level) in the script.
func (c *LuaCurve) Bonus(level uint32) float32 {
	v, err := c.call(level)
	if err != nil {
		fb := c.fallback.Bonus(level)
		c.logger.Warn("scripting: bonus curve failed, using fallback",
			zap.Uint32("level", level),
			zap.Float32("fallback", fb),
			zap.Error(err),
		)
		return fb
	}
	return v
}

func (c *LuaCurve) call(level uint32) (float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.L == nil {
		return 0, fmt.Errorf("curve is closed")
	}

	var ret lua.LValue
	err := RunLimited(c.L, c.instLimit, func() error {
		if err := c.L.CallByParam(lua.P{Fn: c.fn, NRet: 1, Protect: true}, lua.LNumber(level)); err != nil {
			return err
		}
		ret = c.L.Get(-1)
		c.L.Pop(1)
		return nil
	})
	if err != nil {
		return 0, err
	}

	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("bonus(%d) returned %s, want number", level, ret.Type())
	}
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxFloat32 {
		return 0, fmt.Errorf("bonus(%d) returned %v, want a finite value >= 0", level, f)
	}
	return float32(f), nil
}

// Close releases the VM. Subsequent Bonus calls use the fallback.
func (c *LuaCurve) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.L != nil {
		c.L.Close()
		c.L = nil
	}
}

// Package scripting bridges spending policies written in Lua into the
// intra-period loop.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/erisproject/eris-sub002/internal/opt"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// Engine wraps a single gopher-lua VM holding policy functions.
// The VM is not goroutine-safe, so every policy it hands out reports
// itself sequential and runs on the coordinator goroutine only.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. A policy script defines one or more global functions that
// take a context table and return an array of order tables.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load policy scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Policy returns the named policy function as an opt.Policy. It fails
// if no loaded script defined the global.
func (e *Engine) Policy(name string) (opt.Policy, error) {
	if e.vm.GetGlobal(name) == lua.LNil {
		return nil, fmt.Errorf("policy %q: no loaded script defines it", name)
	}
	return &LuaPolicy{eng: e, name: name}, nil
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// LuaPolicy adapts one global Lua function to opt.Policy.
type LuaPolicy struct {
	eng  *Engine
	name string
}

func (p *LuaPolicy) Sequential() bool { return true }

// Plan calls the Lua function with the context packed as a table and
// parses the returned order array.
func (p *LuaPolicy) Plan(ctx opt.PolicyContext) ([]opt.Order, error) {
	vm := p.eng.vm
	fn := vm.GetGlobal(p.name)
	if fn == lua.LNil {
		return nil, fmt.Errorf("policy %q: function vanished", p.name)
	}

	t := vm.NewTable()
	t.RawSetString("period", lua.LNumber(ctx.Period))
	t.RawSetString("iteration", lua.LNumber(ctx.Iteration))
	t.RawSetString("budget", lua.LNumber(ctx.Budget))

	assets := vm.NewTable()
	for g, q := range ctx.Assets {
		assets.RawSetInt(int(g), lua.LNumber(q))
	}
	t.RawSetString("assets", assets)

	markets := vm.NewTable()
	for i, mv := range ctx.Markets {
		row := vm.NewTable()
		row.RawSetString("id", lua.LNumber(mv.ID))
		row.RawSetString("price", lua.LNumber(mv.Price))
		row.RawSetString("supply", lua.LNumber(mv.Supply))
		row.RawSetString("sold", lua.LNumber(mv.Sold))
		if mv.Stockout {
			row.RawSetString("stockout", lua.LTrue)
		} else {
			row.RawSetString("stockout", lua.LFalse)
		}
		markets.RawSetInt(i+1, row)
	}
	t.RawSetString("markets", markets)

	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		return nil, fmt.Errorf("policy %q: %w", p.name, err)
	}

	result := vm.Get(-1)
	vm.Pop(1)

	if result == lua.LNil {
		return nil, nil
	}
	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("policy %q returned %s, want table", p.name, result.Type())
	}

	var orders []opt.Order
	rt.ForEach(func(_, v lua.LValue) {
		if row, ok := v.(*lua.LTable); ok {
			orders = append(orders, opt.Order{
				Market:   sim.ID(lua.LVAsNumber(row.RawGetString("market"))),
				Quantity: float64(lua.LVAsNumber(row.RawGetString("quantity"))),
				MaxPrice: float64(lua.LVAsNumber(row.RawGetString("max_price"))),
			})
		}
	})
	return orders, nil
}

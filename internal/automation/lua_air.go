//go:build !no_automation

package automation

import (
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"tuya-air/internal/gateway"
	"tuya-air/internal/measurement"
	"tuya-air/internal/store"
)

// registerAirModule registers the `air` global table in a Lua state.
func registerAirModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()

	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int {
		return airOn(L, vm, e)
	}))

	mod.RawSetString("get", L.NewFunction(func(L *lua.LState) int {
		return airGet(L, e)
	}))

	mod.RawSetString("property", L.NewFunction(func(L *lua.LState) int {
		return airProperty(L, e)
	}))

	mod.RawSetString("devices", L.NewFunction(func(L *lua.LState) int {
		return airDevices(L, e)
	}))

	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int {
		return airAfter(L, vm, e)
	}))

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return airLog(L, vm, e)
	}))

	L.SetGlobal("air", mod)
}

const maxHandlersPerScript = 100

// air.on(type, filter, callback)
func airOn(L *lua.LState, vm *scriptVM, e *Engine) int {
	eventType := L.CheckString(1)
	filterTable := L.CheckTable(2)
	fn := L.CheckFunction(3)

	h := luaEventHandler{
		eventType: eventType,
		fn:        fn,
	}

	if v := filterTable.RawGetString("ieee"); v != lua.LNil {
		dev := resolveDevice(e, v.String())
		if dev == nil {
			L.ArgError(2, "unknown device: "+v.String())
			return 0
		}
		h.ieee = dev.IEEEAddress
	}
	if v := filterTable.RawGetString("group"); v != lua.LNil {
		k, err := measurement.ParseKind(v.String())
		if err != nil {
			L.ArgError(2, err.Error())
			return 0
		}
		h.group = k.String()
	}
	if v := filterTable.RawGetString("property"); v != lua.LNil {
		h.property = v.String()
	}

	vm.mu.Lock()
	if len(vm.handlers) >= maxHandlersPerScript {
		vm.mu.Unlock()
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	vm.mu.Unlock()

	return 0
}

// air.get(ieee_or_name, group[, attribute]): latest value or nil
func airGet(L *lua.LState, e *Engine) int {
	target := L.CheckString(1)
	k, err := measurement.ParseKind(L.CheckString(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	attr := L.OptString(3, measurement.MeasuredValue)

	dev := resolveDevice(e, target)
	if dev == nil {
		L.Push(lua.LNil)
		return 1
	}
	v, ok := e.gw.Measurement(dev.IEEEAddress, k, attr)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v))
	return 1
}

// air.property(ieee_or_name, name): raw value of an unmapped data point
func airProperty(L *lua.LState, e *Engine) int {
	target := L.CheckString(1)
	prop := L.CheckString(2)

	dev := resolveDevice(e, target)
	if dev == nil || dev.Properties == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(goToLua(L, dev.Properties[prop]))
	return 1
}

// air.devices(): returns a table of all devices
func airDevices(L *lua.LState, e *Engine) int {
	devices, err := e.gw.Devices()
	if err != nil {
		L.Push(L.NewTable())
		return 1
	}

	tbl := L.NewTable()
	for i, dev := range devices {
		d := L.NewTable()
		d.RawSetString("ieee", lua.LString(dev.IEEEAddress))
		d.RawSetString("name", lua.LString(dev.DisplayName()))
		d.RawSetString("model", lua.LString(dev.Model))
		d.RawSetString("manufacturer", lua.LString(dev.Manufacturer))
		d.RawSetString("profile", lua.LString(dev.Profile))
		tbl.RawSetInt(i+1, d)
	}

	L.Push(tbl)
	return 1
}

// air.after(seconds, callback): delayed execution
func airAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{
				Fn:      fn,
				NRet:    0,
				Protect: true,
			}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()

	return 0
}

// air.log(msg)
func airLog(L *lua.LState, vm *scriptVM, e *Engine) int {
	msg := L.CheckString(1)
	if vm.logf != nil {
		vm.logf(msg)
	}
	e.logger.Info("script log", "msg", msg)
	return 0
}

// resolveDevice finds a device by IEEE address or friendly name.
func resolveDevice(e *Engine, target string) *store.Device {
	if ieee, err := gateway.NormalizeIEEE(target); err == nil {
		if dev, err := e.gw.Device(ieee); err == nil {
			return dev
		}
	}

	devices, err := e.gw.Devices()
	if err != nil {
		return nil
	}
	for _, dev := range devices {
		if dev.FriendlyName != "" && strings.EqualFold(dev.FriendlyName, target) {
			return dev
		}
	}
	return nil
}

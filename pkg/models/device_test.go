package models

import (
	"sync"
	"testing"
)

func TestDeviceSetChangeFlags(t *testing.T) {
	rig := NewDeviceSet(NewDevice("a"), NewDevice("b"))

	if !rig.IsUpdateRequired(rig.Devices()) {
		t.Fatal("new devices should require an update")
	}

	rig.ClearChangeFlags()
	if rig.IsUpdateRequired(rig.Devices()) {
		t.Fatal("flags should be cleared")
	}

	if err := rig.SetParam("b", ParamIntensity, 0.5); err != nil {
		t.Fatalf("SetParam failed: %v", err)
	}
	if !rig.IsUpdateRequired(rig.Devices()) {
		t.Error("changed parameter should require an update")
	}

	// Only the changed device is relevant
	a, _ := rig.Get("a")
	if rig.IsUpdateRequired([]*Device{a}) {
		t.Error("device a did not change")
	}
}

func TestDeviceSetSameValueIsNotAChange(t *testing.T) {
	rig := NewDeviceSet(NewDevice("a"))
	_ = rig.SetParam("a", ParamRed, 1)
	rig.ClearChangeFlags()

	_ = rig.SetParam("a", ParamRed, 1)
	if rig.IsUpdateRequired(rig.Devices()) {
		t.Error("setting an identical value should not mark the device changed")
	}
}

func TestDeviceSetUnknownDevice(t *testing.T) {
	rig := NewDeviceSet()
	if err := rig.SetParam("ghost", ParamRed, 1); err == nil {
		t.Error("expected error for unknown device")
	}
}

func TestDeviceSetConcurrentAccess(t *testing.T) {
	rig := NewDeviceSet(NewDevice("a"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			_ = rig.SetParam("a", ParamIntensity, float64(v))
		}(i)
		go func() {
			defer wg.Done()
			snap := NewSnapshot(rig.Devices())
			_ = snap.Len()
		}()
	}
	wg.Wait()
}

func TestDeviceParamDefault(t *testing.T) {
	d := NewDevice("a")
	if d.Param(ParamRadius, 0.25) != 0.25 {
		t.Error("expected default radius")
	}
	d.Params[ParamRadius] = 0.1
	if d.Param(ParamRadius, 0.25) != 0.1 {
		t.Error("expected explicit radius")
	}
}

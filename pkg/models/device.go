package models

import (
	"fmt"
	"sort"
	"sync"
)

// Well-known device parameters read by the software renderer. The parameter
// type system itself is not modeled; every parameter is a float64.
const (
	ParamIntensity = "intensity"
	ParamRed       = "red"
	ParamGreen     = "green"
	ParamBlue      = "blue"
	ParamX         = "x"
	ParamY         = "y"
	ParamRadius    = "radius"
)

// Device is one controllable light and its parameter state
type Device struct {
	ID       string             `json:"id" yaml:"id"`
	Params   map[string]float64 `json:"params" yaml:"params"`
	Metadata map[string]string  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewDevice creates a device with empty parameter and metadata maps
func NewDevice(id string) *Device {
	return &Device{
		ID:       id,
		Params:   make(map[string]float64),
		Metadata: make(map[string]string),
	}
}

// Clone returns a deep copy of the device
func (d *Device) Clone() *Device {
	c := &Device{
		ID:       d.ID,
		Params:   make(map[string]float64, len(d.Params)),
		Metadata: make(map[string]string, len(d.Metadata)),
	}
	for k, v := range d.Params {
		c.Params[k] = v
	}
	for k, v := range d.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// Param returns the named parameter or def when it is unset
func (d *Device) Param(name string, def float64) float64 {
	if v, ok := d.Params[name]; ok {
		return v
	}
	return def
}

// Snapshot is an immutable, independently owned copy of device state taken
// at submission time. The zero value is an empty snapshot.
type Snapshot struct {
	devices map[string]*Device
}

// NewSnapshot deep-copies devices into a new snapshot
func NewSnapshot(devices []*Device) Snapshot {
	s := Snapshot{devices: make(map[string]*Device, len(devices))}
	for _, d := range devices {
		if d == nil {
			continue
		}
		s.devices[d.ID] = d.Clone()
	}
	return s
}

// Len returns the number of devices in the snapshot
func (s Snapshot) Len() int {
	return len(s.devices)
}

// IDs returns the sorted device IDs
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Device returns a copy of the device with the given ID
func (s Snapshot) Device(id string) (*Device, bool) {
	d, ok := s.devices[id]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Devices returns copies of every device, ordered by ID
func (s Snapshot) Devices() []*Device {
	out := make([]*Device, 0, len(s.devices))
	for _, id := range s.IDs() {
		out = append(out, s.devices[id].Clone())
	}
	return out
}

// Clone returns an independent deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{devices: make(map[string]*Device, len(s.devices))}
	for id, d := range s.devices {
		c.devices[id] = d.Clone()
	}
	return c
}

// DeviceSet is the live rig: the devices the control loop mutates and the
// change flags the producer consults before submitting a frame.
type DeviceSet struct {
	mu      sync.RWMutex
	devices map[string]*Device
	changed map[string]bool
}

// NewDeviceSet creates a rig from the given devices. Every device starts
// marked as changed so the first update always renders.
func NewDeviceSet(devices ...*Device) *DeviceSet {
	ds := &DeviceSet{
		devices: make(map[string]*Device),
		changed: make(map[string]bool),
	}
	for _, d := range devices {
		ds.Add(d)
	}
	return ds
}

// Add inserts or replaces a device and marks it changed
func (ds *DeviceSet) Add(d *Device) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.devices[d.ID] = d.Clone()
	ds.changed[d.ID] = true
}

// SetParam sets one parameter and marks the device changed
func (ds *DeviceSet) SetParam(id, name string, value float64) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	d, ok := ds.devices[id]
	if !ok {
		return fmt.Errorf("device %q not found", id)
	}
	if cur, set := d.Params[name]; set && cur == value {
		return nil
	}
	d.Params[name] = value
	ds.changed[id] = true
	return nil
}

// Get returns a copy of the device with the given ID
func (ds *DeviceSet) Get(id string) (*Device, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	d, ok := ds.devices[id]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Devices returns copies of all devices ordered by ID
func (ds *DeviceSet) Devices() []*Device {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	ids := make([]string, 0, len(ds.devices))
	for id := range ds.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, ds.devices[id].Clone())
	}
	return out
}

// IsUpdateRequired reports whether any of the given devices changed since
// the last ClearChangeFlags.
func (ds *DeviceSet) IsUpdateRequired(devices []*Device) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	for _, d := range devices {
		if ds.changed[d.ID] {
			return true
		}
	}
	return false
}

// ClearChangeFlags acknowledges every pending change
func (ds *DeviceSet) ClearChangeFlags() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for id := range ds.changed {
		delete(ds.changed, id)
	}
}

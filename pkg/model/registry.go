package model

// Registry holds the entities of one session, indexed by ordinal position.
// Device slots removed by the user are left as nil holes so that the
// remaining slots keep their positions.
type Registry struct {
	strips  []*Strip
	devices []*FieldDevice
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Strips returns all strips in ordinal order.
func (r *Registry) Strips() []*Strip {
	return r.strips
}

// Strip returns the strip at ordinal id, or nil.
func (r *Registry) Strip(id int) *Strip {
	if id < 0 || id >= len(r.strips) {
		return nil
	}
	return r.strips[id]
}

// StripCount returns the number of strips.
func (r *Registry) StripCount() int {
	return len(r.strips)
}

// AddStrip appends a strip at the next ordinal.
func (r *Registry) AddStrip(pixelCount uint32, channelOrder string) *Strip {
	s := NewStrip(len(r.strips), pixelCount, channelOrder)
	r.strips = append(r.strips, s)
	return s
}

// Devices returns all device slots in ordinal order, including nil holes.
func (r *Registry) Devices() []*FieldDevice {
	return r.devices
}

// Device returns the device at ordinal id, or nil.
func (r *Registry) Device(id int) *FieldDevice {
	if id < 0 || id >= len(r.devices) {
		return nil
	}
	return r.devices[id]
}

// DeviceSlots returns the number of device slots, including holes.
func (r *Registry) DeviceSlots() int {
	return len(r.devices)
}

// PutDevice stores a new device at ordinal id, growing the slot list as
// needed. An existing device at id is replaced.
func (r *Registry) PutDevice(id int) *FieldDevice {
	for len(r.devices) <= id {
		r.devices = append(r.devices, nil)
	}
	d := &FieldDevice{ID: id}
	r.devices[id] = d
	return d
}

// RemoveDevice clears the slot at ordinal id. Returns false if it was empty.
func (r *Registry) RemoveDevice(id int) bool {
	if r.Device(id) == nil {
		return false
	}
	r.devices[id] = nil
	return true
}

// Reset drops every entity.
func (r *Registry) Reset() {
	r.strips = nil
	r.devices = nil
}

package litterrobot

import "fmt"

// DeviceMap is the fixed bijection between vendor IDs and topic slugs.
// It is built once at startup and never mutated, so it is safe to share.
type DeviceMap struct {
	keys   []DeviceKey
	bySlug map[string]DeviceKey
	byID   map[string]DeviceKey
}

// NewDeviceMap validates keys and indexes them both ways. Empty or duplicated
// slugs or IDs are rejected.
func NewDeviceMap(keys []DeviceKey) (*DeviceMap, error) {
	m := &DeviceMap{
		keys:   make([]DeviceKey, 0, len(keys)),
		bySlug: make(map[string]DeviceKey, len(keys)),
		byID:   make(map[string]DeviceKey, len(keys)),
	}

	for _, k := range keys {
		if k.ExternalID == "" || k.Slug == "" {
			return nil, fmt.Errorf("%w: empty slug or external ID in %+v", ErrInvalidDevice, k)
		}
		if _, dup := m.bySlug[k.Slug]; dup {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalidDevice, k.Slug)
		}
		if _, dup := m.byID[k.ExternalID]; dup {
			return nil, fmt.Errorf("%w: duplicate external ID %q", ErrInvalidDevice, k.ExternalID)
		}
		m.keys = append(m.keys, k)
		m.bySlug[k.Slug] = k
		m.byID[k.ExternalID] = k
	}

	return m, nil
}

// BySlug resolves a slug to its key.
func (m *DeviceMap) BySlug(slug string) (DeviceKey, bool) {
	k, ok := m.bySlug[slug]
	return k, ok
}

// ByExternalID resolves a vendor ID to its key.
func (m *DeviceMap) ByExternalID(id string) (DeviceKey, bool) {
	k, ok := m.byID[id]
	return k, ok
}

// Keys returns the configured devices in configuration order.
func (m *DeviceMap) Keys() []DeviceKey {
	out := make([]DeviceKey, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of configured devices.
func (m *DeviceMap) Len() int {
	return len(m.keys)
}

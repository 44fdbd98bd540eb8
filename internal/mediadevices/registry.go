package mediadevices

import (
	"slices"
	"sync"
)

// Registry is the catalog of known devices per class. Reads take a read
// lock and return copies, so callers may observe a state between two
// mutations; every mutation that matters for arbitration runs under the Guard.
type Registry struct {
	mu        sync.RWMutex
	devices   map[DeviceClass][]*Device
	preferred map[DeviceClass][]string
	namer     *Namer
}

// NewRegistry creates a registry holding only the "none" video sentinel.
// preferred lists device ids per class, highest priority first; newly
// discovered devices in that list start with a matching preference rank.
func NewRegistry(namer *Namer, preferred map[DeviceClass][]string) *Registry {
	if namer == nil {
		namer = NewNamer("", nil)
	}
	r := &Registry{
		devices:   make(map[DeviceClass][]*Device, len(DeviceClasses)),
		preferred: make(map[DeviceClass][]string, len(DeviceClasses)),
		namer:     namer,
	}
	for _, c := range DeviceClasses {
		r.devices[c] = nil
		r.preferred[c] = slices.Clone(preferred[c])
	}
	r.devices[VideoInput] = []*Device{{
		ID:           NoneDeviceID,
		Class:        VideoInput,
		Name:         namer.None(),
		Connected:    true,
		DisplayOrder: 0,
	}}
	return r
}

// SetPreferredOrder replaces the configured ranking used for devices
// discovered from now on. Known devices ranked above their current
// preference, such as the "none" sentinel, are raised to their rank.
func (r *Registry) SetPreferredOrder(class DeviceClass, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferred[class] = slices.Clone(ids)
	for _, d := range r.devices[class] {
		if rank := r.rankLocked(class, d.ID); rank > d.Preference {
			d.Preference = rank
		}
	}
	r.sortLocked()
}

// rankLocked returns len-index for configured ids so the first listed id ranks highest.
func (r *Registry) rankLocked(class DeviceClass, id string) int {
	ids := r.preferred[class]
	if i := slices.Index(ids, id); i >= 0 {
		return len(ids) - i
	}
	return 0
}

func (r *Registry) findLocked(class DeviceClass, id string) *Device {
	for _, d := range r.devices[class] {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// Import finds or creates a record for each enumerated device and marks it connected.
func (r *Registry) Import(enumerated []EnumeratedDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range enumerated {
		if d := r.findLocked(e.Class, e.ID); d != nil {
			d.Connected = true
			if e.Label != "" {
				d.Label = e.Label
				d.Name = e.Label
			}
			continue
		}

		list := r.devices[e.Class]
		d := &Device{
			ID:           e.ID,
			Class:        e.Class,
			Label:        e.Label,
			Name:         e.Label,
			Connected:    true,
			Preference:   r.rankLocked(e.Class, e.ID),
			DisplayOrder: len(list),
		}
		if d.Name == "" {
			d.Name = r.namer.Placeholder(e.Class, len(list)+1)
		}
		r.devices[e.Class] = append(list, d)
	}
}

// MarkAllDisconnected provisionally disconnects every device except the sentinel.
func (r *Registry) MarkAllDisconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, list := range r.devices {
		for _, d := range list {
			if !d.IsNone() {
				d.Connected = false
			}
		}
	}
}

// Find looks up a device by class and id.
func (r *Registry) Find(class DeviceClass, id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d := r.findLocked(class, id); d != nil {
		return *d, true
	}
	return Device{}, false
}

// Devices returns the devices of a class in preference order.
func (r *Registry) Devices(class DeviceClass) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, 0, len(r.devices[class]))
	for _, d := range r.devices[class] {
		out = append(out, *d)
	}
	return out
}

// DevicesByDisplayOrder returns the devices of a class in discovery order.
func (r *Registry) DevicesByDisplayOrder(class DeviceClass) []Device {
	out := r.Devices(class)
	slices.SortStableFunc(out, func(a, b Device) int { return a.DisplayOrder - b.DisplayOrder })
	return out
}

// SortByPreference stable-sorts each class by descending preference.
func (r *Registry) SortByPreference() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sortLocked()
}

func (r *Registry) sortLocked() {
	for _, list := range r.devices {
		slices.SortStableFunc(list, func(a, b *Device) int { return b.Preference - a.Preference })
	}
}

// Active returns the active device of a class, if any.
func (r *Registry) Active(class DeviceClass) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices[class] {
		if d.Active {
			return *d, true
		}
	}
	return Device{}, false
}

// Preferred returns the connected device with the highest preference,
// excluding the sentinel. Ties go to the earlier entry.
func (r *Registry) Preferred(class DeviceClass) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Device
	for _, d := range r.devices[class] {
		if !d.Connected || d.IsNone() {
			continue
		}
		if best == nil || d.Preference > best.Preference {
			best = d
		}
	}
	if best == nil {
		return Device{}, false
	}
	return *best, true
}

// SetActive makes id the only active device of its class. An empty id clears the class.
func (r *Registry) SetActive(class DeviceClass, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices[class] {
		d.Active = id != "" && d.ID == id
	}
}

// ClearActive leaves a class with no active device, or with the sentinel active for video.
func (r *Registry) ClearActive(class DeviceClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearActiveLocked(class)
}

func (r *Registry) clearActiveLocked(class DeviceClass) {
	for _, d := range r.devices[class] {
		d.Active = d.IsNone()
	}
}

// Prefer raises a device above every other device of its class and re-sorts.
// It returns the new preference, or false if the device is unknown.
func (r *Registry) Prefer(class DeviceClass, id string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := r.findLocked(class, id)
	if target == nil {
		return 0, false
	}
	highest := 0
	for _, d := range r.devices[class] {
		if d != target && d.Preference > highest {
			highest = d.Preference
		}
	}
	target.Preference = highest + 1
	r.sortLocked()
	return target.Preference, true
}

// PreferenceOrder returns ids with a positive preference, highest first.
func (r *Registry) PreferenceOrder(class DeviceClass) []string {
	devices := r.Devices(class)
	slices.SortStableFunc(devices, func(a, b Device) int { return b.Preference - a.Preference })
	var ids []string
	for _, d := range devices {
		if d.Preference > 0 {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// trackStarted marks the device backing a new track active and its siblings inactive.
func (r *Registry) trackStarted(p *TrackParameters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices[p.DeviceClass] {
		d.Active = d.ID == p.Settings.DeviceID
		if d.Active {
			if p.Label != "" {
				d.Label = p.Label
				d.Name = p.Label
			}
			d.Constraints = p.Constraints
			d.Constraints.DeviceID = ""
		}
	}
}

// trackStopped deactivates the device that backed a removed track. Video falls back to the sentinel.
func (r *Registry) trackStopped(p *TrackParameters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearActiveLocked(p.DeviceClass)
}

// Counts returns the number of connected and active devices of a class, sentinel excluded.
func (r *Registry) Counts(class DeviceClass) (connected, active int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices[class] {
		if d.IsNone() {
			continue
		}
		if d.Connected {
			connected++
		}
		if d.Active {
			active++
		}
	}
	return connected, active
}

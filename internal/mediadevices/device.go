package mediadevices

// NoneDeviceID is the id of the synthetic video input meaning "capture no video".
const NoneDeviceID = "none"

// EnumeratedDevice is what an Enumerator reports for one present device.
// Labels may be empty before capture permission has been granted.
type EnumeratedDevice struct {
	ID    string
	Label string
	Class DeviceClass
}

// Device is the registry's record of a device. Records are created on first
// enumeration and updated in place afterwards; they are never removed.
type Device struct {
	ID           string      `json:"id"`
	Class        DeviceClass `json:"class"`
	Label        string      `json:"label"`
	Name         string      `json:"name"`
	Connected    bool        `json:"connected"`
	Active       bool        `json:"active"`
	Preference   int         `json:"preference"`
	DisplayOrder int         `json:"displayOrder"`
	Constraints  Constraints `json:"constraints"`
}

// TrackKind returns the kind of track the device backs.
func (d Device) TrackKind() TrackKind {
	return d.Class.TrackKind()
}

// IsNone reports whether d is the "no video" sentinel.
func (d Device) IsNone() bool {
	return d.ID == NoneDeviceID
}

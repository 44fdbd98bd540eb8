package mediadevices

import (
	"github.com/ringneck/libwebphone/internal/audiograph"
)

// VolumeRender is a channel volume as shown on a control surface.
type VolumeRender struct {
	Value int `json:"value"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

// DeviceRender is one selectable device.
type DeviceRender struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Label     string `json:"label,omitempty"`
	Connected bool   `json:"connected"`
	Selected  bool   `json:"selected"`
}

// ClassRender lists the devices of one class in discovery order.
type ClassRender struct {
	Class   DeviceClass    `json:"class"`
	Enabled bool           `json:"enabled"`
	Devices []DeviceRender `json:"devices"`
}

// RenderData is everything a control surface needs to draw the device panel.
type RenderData struct {
	Loaded         bool                                `json:"loaded"`
	PreviewActive  bool                                `json:"previewActive"`
	InputActive    bool                                `json:"inputActive"`
	OutputMuted    bool                                `json:"outputMuted"`
	ToneActive     bool                                `json:"toneActive"`
	LoopbackActive bool                                `json:"loopbackActive"`
	Ringing        bool                                `json:"ringing"`
	Volumes        map[audiograph.Channel]VolumeRender `json:"volumes"`
	Classes        []ClassRender                       `json:"classes"`
	Tracks         []*TrackParameters                  `json:"tracks"`
}

// RenderData snapshots the engine state without taking the guard.
func (m *Manager) RenderData() RenderData {
	rd := RenderData{
		Loaded:         m.loaded.Load(),
		PreviewActive:  m.lc.previewActive.Load(),
		InputActive:    m.lc.streamsActive.Load(),
		OutputMuted:    m.graph.OutputMuted(),
		ToneActive:     m.graph.ToneActive(),
		LoopbackActive: m.graph.LoopbackActive(),
		Ringing:        m.graph.Ringing(),
		Volumes:        make(map[audiograph.Channel]VolumeRender, len(audiograph.Channels)),
	}

	for _, ch := range audiograph.Channels {
		rd.Volumes[ch] = VolumeRender{
			Value: m.ControlVolume(ch),
			Min:   audiograph.ControlMin,
			Max:   audiograph.ControlMax,
		}
	}

	for _, class := range DeviceClasses {
		cr := ClassRender{Class: class, Enabled: m.cfg.class(class).Enabled}
		for _, d := range m.reg.DevicesByDisplayOrder(class) {
			cr.Devices = append(cr.Devices, DeviceRender{
				ID:        d.ID,
				Name:      d.Name,
				Label:     d.Label,
				Connected: d.Connected,
				Selected:  d.Active,
			})
		}
		rd.Classes = append(rd.Classes, cr)
	}

	for _, t := range m.lc.stream.Tracks() {
		rd.Tracks = append(rd.Tracks, NewTrackParameters(m.lc.stream, t))
	}
	return rd
}

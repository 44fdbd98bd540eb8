package mediadevices

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys for generated device names.
const (
	msgNone        = "mediadevices.none"
	msgAudioOutput = "mediadevices.audiooutput %d"
	msgAudioInput  = "mediadevices.audioinput %d"
	msgVideoInput  = "mediadevices.videoinput %d"
	msgDeviceCount = "mediadevices.count %d"
)

var supportedLocales = []language.Tag{
	language.English,
	language.German,
	language.Spanish,
	language.French,
}

var placeholderCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key, msg string) {
		_ = b.SetString(tag, key, msg)
	}

	set(language.English, msgNone, "None")
	set(language.English, msgAudioOutput, "Speaker %d")
	set(language.English, msgAudioInput, "Microphone %d")
	set(language.English, msgVideoInput, "Camera %d")
	_ = b.Set(language.English, msgDeviceCount, plural.Selectf(1, "%d",
		"=0", "no devices",
		"one", "%d device",
		"other", "%d devices"))

	set(language.German, msgNone, "Keine")
	set(language.German, msgAudioOutput, "Lautsprecher %d")
	set(language.German, msgAudioInput, "Mikrofon %d")
	set(language.German, msgVideoInput, "Kamera %d")
	_ = b.Set(language.German, msgDeviceCount, plural.Selectf(1, "%d",
		"=0", "keine Geräte",
		"one", "%d Gerät",
		"other", "%d Geräte"))

	set(language.Spanish, msgNone, "Ninguno")
	set(language.Spanish, msgAudioOutput, "Altavoz %d")
	set(language.Spanish, msgAudioInput, "Micrófono %d")
	set(language.Spanish, msgVideoInput, "Cámara %d")

	set(language.French, msgNone, "Aucun")
	set(language.French, msgAudioOutput, "Haut-parleur %d")
	set(language.French, msgAudioInput, "Microphone %d")
	set(language.French, msgVideoInput, "Caméra %d")

	return b
}

// Namer produces display names for devices that report no label.
type Namer struct {
	printer   *message.Printer
	overrides map[DeviceClass]string
}

// NewNamer picks the closest supported locale. A non-empty override for a
// class replaces the translated placeholder and is formatted as "<override> <n>".
func NewNamer(locale string, overrides map[DeviceClass]string) *Namer {
	tag := language.English
	if locale != "" {
		if requested, err := language.Parse(locale); err == nil {
			_, idx, conf := language.NewMatcher(supportedLocales).Match(requested)
			if conf != language.No {
				tag = supportedLocales[idx]
			}
		}
	}
	return &Namer{
		printer:   message.NewPrinter(tag, message.Catalog(placeholderCatalog)),
		overrides: overrides,
	}
}

// None is the display name of the "no video" sentinel.
func (n *Namer) None() string {
	return n.printer.Sprintf(msgNone)
}

// Placeholder names the ordinal-th device of a class.
func (n *Namer) Placeholder(class DeviceClass, ordinal int) string {
	if o := n.overrides[class]; o != "" {
		return n.printer.Sprintf("%s %d", o, ordinal)
	}
	switch class {
	case AudioOutput:
		return n.printer.Sprintf(msgAudioOutput, ordinal)
	case AudioInput:
		return n.printer.Sprintf(msgAudioInput, ordinal)
	case VideoInput:
		return n.printer.Sprintf(msgVideoInput, ordinal)
	}
	panic("mediadevices: unhandled device class " + class.String())
}

// DeviceCount renders a pluralized device count, used by summaries.
func (n *Namer) DeviceCount(count int) string {
	return n.printer.Sprintf(msgDeviceCount, count)
}

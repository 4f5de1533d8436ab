package hotmic

import (
	"log"

	"github.com/gordonklaus/portaudio"
)

// AudioDevice describes an available audio device. Device enumeration is a
// diagnostic convenience for a host UI, not something the engine itself
// depends on to process audio — the engine never opens a portaudio.Stream
// itself.
type AudioDevice struct {
	ID   int
	Name string
}

// ListInputDevices returns the currently available capture devices.
func ListInputDevices() []AudioDevice {
	return listDevices(func(d *portaudio.DeviceInfo) bool { return d.MaxInputChannels > 0 })
}

// ListOutputDevices returns the currently available playback devices.
func ListOutputDevices() []AudioDevice {
	return listDevices(func(d *portaudio.DeviceInfo) bool { return d.MaxOutputChannels > 0 })
}

func listDevices(match func(*portaudio.DeviceInfo) bool) []AudioDevice {
	devices, err := portaudio.Devices()
	if err != nil {
		log.Printf("[hotmic] list devices: %v", err)
		return nil
	}
	var out []AudioDevice
	for i, d := range devices {
		if match(d) {
			out = append(out, AudioDevice{ID: i, Name: d.Name})
		}
	}
	return out
}

// portAudioResolver adapts the portaudio device list to
// internal/capture.DeviceResolver and internal/recovery.Resolver, so the
// capture manager's duplicate-binding/fallback logic and the device
// recovery loop both resolve against the same live device list without
// either package importing portaudio directly.
type portAudioResolver struct {
	storedOutputID int
}

func (r *portAudioResolver) IsActive(deviceID int) bool {
	devices, err := portaudio.Devices()
	if err != nil {
		return false
	}
	return deviceID >= 0 && deviceID < len(devices)
}

func (r *portAudioResolver) DefaultDevice() int {
	d, err := portaudio.DefaultInputDevice()
	if err != nil {
		return -1
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return -1
	}
	for i, dev := range devices {
		if dev == d {
			return i
		}
	}
	return -1
}

// Resolve implements recovery.Resolver: re-list devices and report the
// current default output device id as the fallback endpoint when the
// stored id is gone. Input device ids are left to the capture
// manager's own ReResolve, which uses IsActive/DefaultDevice per channel.
func (r *portAudioResolver) Resolve() (inputDeviceIDs []int, outputDeviceID int, ok bool) {
	devices, err := portaudio.Devices()
	if err != nil || len(devices) == 0 {
		return nil, 0, false
	}
	if r.storedOutputID >= 0 && r.storedOutputID < len(devices) {
		return nil, r.storedOutputID, true
	}
	out, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, 0, false
	}
	for i, dev := range devices {
		if dev == out {
			return nil, i, true
		}
	}
	return nil, 0, false
}

package acquisition

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	paMu    sync.Mutex
	paUsers int
)

// Initialize brings PortAudio up. Calls nest; every successful Initialize must
// be balanced by Terminate.
func Initialize() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paUsers == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("initialize portaudio: %w", err)
		}
	}
	paUsers++
	return nil
}

// Terminate releases one Initialize and shuts PortAudio down with the last one.
func Terminate() {
	paMu.Lock()
	defer paMu.Unlock()
	if paUsers == 0 {
		return
	}
	paUsers--
	if paUsers == 0 {
		_ = portaudio.Terminate()
	}
}

// Device describes a capture-capable PortAudio device.
type Device struct {
	Name       string
	HostAPI    string
	Inputs     int
	SampleRate float64
	Default    bool
}

func (d Device) String() string {
	marker := ""
	if d.Default {
		marker = " (default)"
	}
	return fmt.Sprintf("%s [%s]%s inputs:%d sample:%.0f Hz", d.Name, d.HostAPI, marker, d.Inputs, d.SampleRate)
}

// ListDevices returns the input devices of every host API, default first,
// then by host and name.
func ListDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultIndex := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultIndex = def.Index
	}

	var devices []Device
	for _, host := range hosts {
		for _, d := range host.Devices {
			if d.MaxInputChannels == 0 {
				continue
			}
			devices = append(devices, Device{
				Name:       d.Name,
				HostAPI:    host.Name,
				Inputs:     d.MaxInputChannels,
				SampleRate: d.DefaultSampleRate,
				Default:    d.Index == defaultIndex,
			})
		}
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Default != devices[j].Default {
			return devices[i].Default
		}
		if devices[i].HostAPI != devices[j].HostAPI {
			return devices[i].HostAPI < devices[j].HostAPI
		}
		return strings.ToLower(devices[i].Name) < strings.ToLower(devices[j].Name)
	})
	return devices, nil
}

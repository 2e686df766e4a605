// Package audio records dictation from the default microphone.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alkime/memnote/pkg/channels"
	"github.com/gen2brain/malgo"
)

// DataPacket is a block of S16LE samples delivered by a capture device.
type DataPacket = []byte

// Device is a capture device. Capture allocates it and returns the channel
// packets arrive on once Start is called.
type Device interface {
	Capture(ctx context.Context) (<-chan DataPacket, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Dealloc(ctx context.Context)
}

// DeviceConfig configures a capture device.
type DeviceConfig struct {
	SampleRate int
	Channels   int
	// Buffer is the number of packets held before new ones are dropped.
	Buffer int
}

type device struct {
	conf   DeviceConfig
	logger *slog.Logger

	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
}

// NewDevice returns a malgo-backed capture device for the system default
// input.
func NewDevice(conf DeviceConfig) Device {
	if conf.Buffer <= 0 {
		conf.Buffer = 64
	}

	return &device{conf: conf, logger: slog.Default()}
}

func (d *device) Capture(_ context.Context) (<-chan DataPacket, error) {
	if d.mgDevice != nil {
		return nil, errors.New("device already allocated")
	}

	dataC := make(chan DataPacket, d.conf.Buffer)

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = malgo.FormatS16
	devCnf.Capture.Channels = uint32(d.conf.Channels)
	devCnf.SampleRate = uint32(d.conf.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			// malgo reuses samples after the callback returns
			packet := append(DataPacket(nil), samples...)
			if err := channels.SendNonBlock(dataC, packet); err != nil {
				d.logger.Debug("Dropping audio packet", "error", err)
			}
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callbacks)
	if err != nil {
		uninitializeContext(mgCtx, d.logger)
		return nil, fmt.Errorf("failed to initialize malgo device: %w", err)
	}

	d.mgCtx = mgCtx
	d.mgDevice = mgDevice

	return dataC, nil
}

func (d *device) Start(_ context.Context) error {
	if d.mgDevice == nil {
		return errors.New("device not allocated, call Capture first")
	}

	if d.mgDevice.IsStarted() {
		return nil
	}

	if err := d.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

func (d *device) Stop(_ context.Context) error {
	if d.mgDevice == nil || !d.mgDevice.IsStarted() {
		return nil
	}

	if err := d.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

func (d *device) Dealloc(_ context.Context) {
	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	uninitializeContext(d.mgCtx, d.logger)
	d.mgDevice = nil
	d.mgCtx = nil
}

func uninitializeContext(mgCtx *malgo.AllocatedContext, logger *slog.Logger) {
	if mgCtx == nil {
		return
	}

	if err := mgCtx.Uninit(); err != nil {
		logger.Error("Failed to uninitialize malgo context", "error", err)
	}
	mgCtx.Free()
}

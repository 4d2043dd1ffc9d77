//go:build rp2040

package main

import (
	"machine"
	"time"

	"harpclock/broadcast"
	"harpclock/config"
	"harpclock/core"
	"harpclock/harp"
	"harpclock/protocol"
	"harpclock/registers"
)

var (
	cfg *config.Config

	bridge  *harp.Bridge
	decoder *harp.SyncDecoder
	bcast   *broadcast.Broadcaster
	device  *registers.Device
	status  *statusLED

	// Register port buffers
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	usbErrors  uint32
	loopPanics uint32
)

func main() {
	// Clear any watchdog state left over from a previous run
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	cfg = config.Default()

	InitUSB()
	InitClock()

	clock := hardwareClock{}
	bridge = harp.NewBridge(clock, cfg.BridgeOptions())
	decoder = harp.NewSyncDecoder(bridge, clock, cfg.Sync.LeadUS)

	out, err := InitOutput(cfg)
	if err != nil {
		halt()
	}
	bcast = broadcast.New(bridge, core.DefaultTimerQueue(), out)

	device = registers.NewDevice(cfg.Identity(), cfg.AppDefaults(), bridge)
	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()
	transport = protocol.NewTransport(outputBuffer, device.Handle, bridge.HarpTimeUS)
	transport.SetFlushCallback(writeUSB)

	status = newStatusLED(cfg.Board.LEDPin)

	if err := InitSyncUART(cfg); err != nil {
		halt()
	}
	InitDebug(cfg)
	go syncReaderLoop()
	go usbReaderLoop()

	// Registers and the LED stay live while waiting for the first pulse
	bcast.Run(idle)

	for {
		service()
		time.Sleep(10 * time.Microsecond)
	}
}

// idle runs one loop iteration while waiting for synchronization
func idle() {
	service()
	time.Sleep(10 * time.Microsecond)
}

// service is one main loop iteration
func service() {
	defer func() {
		if r := recover(); r != nil {
			loopPanics++
			inputBuffer.Reset()
			outputBuffer.Reset()
		}
	}()

	UpdateSystemTime()

	if !inputBuffer.IsEmpty() {
		transport.Receive(inputBuffer)
	}

	core.ProcessTimers()
	status.Update()
}

// halt blinks the on-board LED forever
func halt() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}

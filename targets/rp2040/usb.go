//go:build rp2040

package main

import (
	"machine"
	"time"
)

var consecutiveWriteFailures uint32

// InitUSB configures USB CDC, which carries the Harp register port
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// usbReaderLoop moves received bytes into the register input buffer
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			usbErrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		for machine.Serial.Buffered() > 0 {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				usbErrors++
				break
			}
			if err := inputBuffer.WriteByte(b); err != nil {
				// Parser is behind; drop and let it resynchronize
				usbErrors++
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB sends queued register replies
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := machine.Serial.Write(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				// Host is gone; stale replies are useless to the next one
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}

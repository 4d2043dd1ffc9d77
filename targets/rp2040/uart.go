//go:build rp2040

package main

import (
	"io"
	"machine"
	"time"

	"harpclock/config"
	"harpclock/core"
	"harpclock/harp"
	"harpclock/targets/pio"
)

var syncUART *machine.UART

// InitOutput configures the line the seconds are broadcast on: UART0, or a
// PIO transmitter when the board config asks for one
func InitOutput(cfg *config.Config) (io.Writer, error) {
	if cfg.Board.PIOOutput {
		tx := pio.NewUARTTx(0, 0)
		if err := tx.Configure(cfg.Board.OutputPin, uint32(cfg.Output.Baud)); err != nil {
			return nil, err
		}
		return tx, nil
	}

	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: uint32(cfg.Output.Baud),
		TX:       machine.Pin(cfg.Board.OutputPin),
		RX:       machine.GPIO1,
	})
	if err != nil {
		return nil, err
	}
	return uart, nil
}

// InitSyncUART configures UART1 to receive the harp synchronization line
func InitSyncUART(cfg *config.Config) error {
	syncUART = machine.UART1
	return syncUART.Configure(machine.UARTConfig{
		BaudRate: uint32(cfg.Sync.Baud),
		TX:       machine.GPIO4,
		RX:       machine.Pin(cfg.Board.SyncRxPin),
	})
}

// syncReaderLoop feeds received sync bytes to the decoder. Bytes are stamped
// when drained, not in the RX interrupt, so each stamp is backed off by the
// bytes queued behind it; what remains is up to one poll period plus
// harp.SyncByteUS of lag.
func syncReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			core.DebugAsync("sync reader restarted")
			time.Sleep(10 * time.Millisecond)
			go syncReaderLoop()
		}
	}()

	byteUS := uint64(10 * 1000000 / cfg.Sync.Baud)
	for {
		if n := syncUART.Buffered(); n > 0 {
			readUS := GetHardwareUptime()
			for i := 0; i < n; i++ {
				b, err := syncUART.ReadByte()
				if err != nil {
					break
				}
				decoder.Feed(b, harp.ByteArrival(readUS, n-1-i, byteUS))
			}
		}
		// A byte takes 100us at the sync baud rate
		time.Sleep(20 * time.Microsecond)
	}
}

// InitDebug sends core debug output out of the sync UART's unused TX pin
func InitDebug(cfg *config.Config) {
	if !cfg.Debug.Enabled || syncUART == nil {
		return
	}
	core.SetDebugWriter(func(msg string) {
		syncUART.Write([]byte(msg))
		syncUART.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()
	core.DebugPrintln("harpclock: debug on UART1 TX")
}

//go:build !tinygo

// Package sim runs the harp clock broadcaster on a host, against the host
// monotonic clock and ordinary serial ports.
package sim

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"harpclock/broadcast"
	"harpclock/config"
	"harpclock/core"
	"harpclock/harp"
	"harpclock/protocol"
	"harpclock/registers"
)

const (
	// DefaultTick is the main loop period
	DefaultTick = 100 * time.Microsecond

	registerBufferSize = 512
)

// Ports are the three serial lines. Sync and Registers may be nil.
type Ports struct {
	Output    io.Writer
	Sync      io.Reader
	Registers io.ReadWriter
}

// MonotonicClock reads microseconds since it was created
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock starts a clock at zero
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// NowUS returns elapsed microseconds
func (c *MonotonicClock) NowUS() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

// Simulator owns the clock bridge, the broadcaster and the register port
type Simulator struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	ports Ports
	clock harp.Clock
	tick  time.Duration

	timers    *core.TimerQueue
	bridge    *harp.Bridge
	decoder   *harp.SyncDecoder
	bcast     *broadcast.Broadcaster
	device    *registers.Device
	transport *protocol.Transport

	regIn  *protocol.FifoBuffer
	regOut *protocol.ScratchOutput
	regCh  chan []byte

	started bool
}

// Option configures a Simulator
type Option func(*Simulator)

// WithClock replaces the monotonic clock
func WithClock(clock harp.Clock) Option {
	return func(s *Simulator) { s.clock = clock }
}

// WithTick sets the main loop period
func WithTick(tick time.Duration) Option {
	return func(s *Simulator) { s.tick = tick }
}

// New wires a simulator from cfg
func New(cfg *config.Config, log *zap.SugaredLogger, ports Ports, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:    cfg,
		log:    log,
		ports:  ports,
		tick:   DefaultTick,
		timers: core.NewTimerQueue(),
		regIn:  protocol.NewFifoBuffer(registerBufferSize),
		regOut: protocol.NewScratchOutput(),
		regCh:  make(chan []byte, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = NewMonotonicClock()
	}

	s.bridge = harp.NewBridge(s.clock, cfg.BridgeOptions())
	s.decoder = harp.NewSyncDecoder(s.bridge, s.clock, cfg.Sync.LeadUS)
	s.bcast = broadcast.New(s.bridge, s.timers, ports.Output)
	s.device = registers.NewDevice(cfg.Identity(), cfg.AppDefaults(), s.bridge)
	s.transport = protocol.NewTransport(s.regOut, s.device.Handle, s.bridge.HarpTimeUS)
	s.device.OnWrite = func(reg *registers.Register) {
		s.log.Debugw("register written", "name", reg.Name, "address", reg.Address)
	}
	return s
}

// Bridge returns the clock bridge
func (s *Simulator) Bridge() *harp.Bridge { return s.bridge }

// Broadcaster returns the broadcaster
func (s *Simulator) Broadcaster() *broadcast.Broadcaster { return s.bcast }

// Device returns the register table
func (s *Simulator) Device() *registers.Device { return s.device }

// Decoder returns the sync frame decoder
func (s *Simulator) Decoder() *harp.SyncDecoder { return s.decoder }

// Run services the ports until ctx is done. Broadcasting starts once the
// first synchronization frame has been applied.
func (s *Simulator) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	if s.ports.Sync != nil {
		go s.readSync(errCh)
	}
	if s.ports.Registers != nil {
		go s.readRegisters(ctx)
	}

	s.log.Infow("waiting for harp synchronization", "lead_us", s.cfg.Sync.LeadUS)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.bcast.Stop()
			s.logStats()
			return nil
		case err := <-errCh:
			s.bcast.Stop()
			return err
		case <-ticker.C:
		}

		s.Step()
	}
}

// Started reports whether the broadcast chain is running
func (s *Simulator) Started() bool { return s.started }

// Step runs one loop iteration. The broadcast chain is started on the first
// step that finds the bridge synchronized.
func (s *Simulator) Step() {
	if !s.started && s.bridge.HasSynchronized() {
		s.bcast.Start()
		s.started = true
		s.log.Infow("synchronized, broadcasting", "harp_us", s.bridge.HarpTimeUS())
	}
	s.serviceRegisters()
	now := s.clock.NowUS()
	core.SetTime(now)
	s.timers.Dispatch(now)
}

func (s *Simulator) readSync(errCh chan<- error) {
	if _, err := s.decoder.ReadFrom(s.ports.Sync); err != nil {
		errCh <- err
		return
	}
	s.log.Warn("sync input closed")
}

func (s *Simulator) readRegisters(ctx context.Context) {
	buf := make([]byte, 256)
	for {
		n, err := s.ports.Registers.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.regCh <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warnw("register port read failed", "error", err)
			}
			return
		}
	}
}

func (s *Simulator) serviceRegisters() {
drain:
	for {
		select {
		case chunk := <-s.regCh:
			if _, err := s.regIn.Write(chunk); err != nil {
				s.log.Warnw("register input overflow, resetting", "error", err)
				s.regIn.Reset()
			}
		default:
			break drain
		}
	}

	if s.regIn.IsEmpty() {
		return
	}
	s.transport.Receive(s.regIn)

	if reply := s.regOut.Result(); len(reply) > 0 {
		if _, err := s.ports.Registers.Write(reply); err != nil {
			s.log.Warnw("register reply failed", "error", err)
		}
		s.regOut.Reset()
	}
}

func (s *Simulator) logStats() {
	st := s.bcast.Stats()
	s.log.Infow("stopped",
		"frames", st.Frames,
		"write_errors", st.WriteErrors,
		"last_second", st.LastSecond,
		"sync_frames", s.decoder.Frames(),
		"sync_dropped", s.decoder.Dropped(),
		"register_messages", s.transport.Received())
}

package source

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"tuya-air/internal/metrics"
	"tuya-air/internal/tuya"
	"tuya-air/internal/zcl/clusters"
)

// MCUConfig configures a serial Tuya MCU source.
type MCUConfig struct {
	Port      string
	Baud      int
	IEEE      string        // device the MCU reports are attributed to
	Heartbeat time.Duration // 0 disables heartbeats
}

// SerialMCU speaks the Tuya MCU protocol as the radio module would, turning
// status reports into 0xEF00 data-report events.
type SerialMCU struct {
	rw     io.ReadWriteCloser
	reader *bufio.Reader
	cfg    MCUConfig
	logger *slog.Logger

	handlerMu    sync.RWMutex
	onClusterCmd func(ClusterCommandEvent)

	writeMu sync.Mutex
	seq     atomic.Uint32

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// OpenSerialMCU opens the serial port and starts the MCU source.
func OpenSerialMCU(cfg MCUConfig, logger *slog.Logger) (*SerialMCU, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("tuya mcu: open %s: %w", cfg.Port, err)
	}
	return NewSerialMCU(port, cfg, logger), nil
}

// NewSerialMCU starts the MCU source over an already open link.
func NewSerialMCU(rw io.ReadWriteCloser, cfg MCUConfig, logger *slog.Logger) *SerialMCU {
	m := &SerialMCU{
		rw:     rw,
		reader: bufio.NewReader(rw),
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
	m.wg.Add(2)
	go m.readLoop()
	go m.pollLoop()
	return m
}

func (m *SerialMCU) Name() string { return "serial" }

// OnClusterCommand sets the handler for data reports.
func (m *SerialMCU) OnClusterCommand(handler func(ClusterCommandEvent)) {
	m.handlerMu.Lock()
	m.onClusterCmd = handler
	m.handlerMu.Unlock()
}

// QueryStatus asks the MCU to report every data point.
func (m *SerialMCU) QueryStatus() error {
	return m.send(tuya.CmdQueryStatus, nil)
}

func (m *SerialMCU) send(cmd uint8, data []byte) error {
	frame := tuya.MCUFrame{Command: cmd, Data: data}.Encode()
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if _, err := m.rw.Write(frame); err != nil {
		return fmt.Errorf("tuya mcu: write command 0x%02X: %w", cmd, err)
	}
	return nil
}

// pollLoop asks for product info and a full status, then sends heartbeats.
func (m *SerialMCU) pollLoop() {
	defer m.wg.Done()

	for _, cmd := range []uint8{tuya.CmdHeartbeat, tuya.CmdProductInfo, tuya.CmdQueryStatus} {
		if err := m.send(cmd, nil); err != nil {
			if !m.closing() {
				m.logger.Warn("tuya mcu startup query failed", "cmd", fmt.Sprintf("0x%02X", cmd), "err", err)
			}
			return
		}
	}

	if m.cfg.Heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if err := m.send(tuya.CmdHeartbeat, nil); err != nil && !m.closing() {
				m.logger.Warn("tuya mcu heartbeat failed", "err", err)
			}
		}
	}
}

func (m *SerialMCU) readLoop() {
	defer m.wg.Done()

	backoff := 10 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		select {
		case <-m.done:
			return
		default:
		}

		frame, err := tuya.ReadMCUFrame(m.reader)
		if errors.Is(err, tuya.ErrChecksum) {
			metrics.ObserveFrame(m.Name(), err)
			m.logger.Warn("tuya mcu frame dropped", "err", err)
			continue
		}
		if err != nil {
			if m.closing() {
				return
			}
			if err != io.EOF && !strings.Contains(err.Error(), "closed") {
				m.logger.Error("tuya mcu read error", "err", err)
			}
			select {
			case <-time.After(backoff):
			case <-m.done:
				return
			}
			if backoff < maxBackoff {
				backoff = min(backoff*2, maxBackoff)
			}
			continue
		}
		backoff = 10 * time.Millisecond

		m.handleFrame(frame)
	}
}

func (m *SerialMCU) handleFrame(f tuya.MCUFrame) {
	switch f.Command {
	case tuya.CmdHeartbeat:
		m.logger.Debug("tuya mcu heartbeat", "state", f.Data)
	case tuya.CmdProductInfo:
		m.logger.Info("tuya mcu product info", "info", string(f.Data))
	case tuya.CmdStatusReport:
		// Prefix a sequence number so the payload has the 0xEF00 layout.
		payload := binary.BigEndian.AppendUint16(nil, uint16(m.seq.Add(1)))
		payload = append(payload, f.Data...)
		m.dispatch(ClusterCommandEvent{
			Source:    m.Name(),
			IEEE:      m.cfg.IEEE,
			Endpoint:  1,
			ClusterID: clusters.TuyaClusterID,
			CommandID: clusters.TuyaCmdDataReport,
			Payload:   payload,
		})
	default:
		m.logger.Debug("tuya mcu frame ignored", "cmd", fmt.Sprintf("0x%02X", f.Command), "len", len(f.Data))
	}
}

func (m *SerialMCU) dispatch(evt ClusterCommandEvent) {
	m.handlerMu.RLock()
	h := m.onClusterCmd
	m.handlerMu.RUnlock()
	if h != nil {
		h(evt)
	}
}

func (m *SerialMCU) closing() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Close stops the loops and closes the link.
func (m *SerialMCU) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		err = m.rw.Close()
	})
	m.wg.Wait()
	return err
}

var _ Source = (*SerialMCU)(nil)

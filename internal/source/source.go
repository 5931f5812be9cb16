// Package source defines where vendor reports come from. A Source delivers
// Tuya cluster commands to the gateway; SerialMCU reads them from a Tuya MCU
// over UART.
package source

// Source is the inbound side of the gateway.
type Source interface {
	Name() string
	OnClusterCommand(handler func(ClusterCommandEvent))
	Close() error
}

// ClusterCommandEvent is an incoming cluster-specific command, e.g. a Tuya DP report.
type ClusterCommandEvent struct {
	Source    string
	IEEE      string
	Endpoint  uint8
	ClusterID uint16
	CommandID uint8
	Payload   []byte
	LQI       uint8
}

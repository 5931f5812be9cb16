package clusters

import "tuya-air/internal/zcl"

const TuyaClusterID uint16 = 0xEF00

// Tuya manufacturer cluster command IDs.
const (
	TuyaCmdDataResponse uint8 = 0x01
	TuyaCmdDataReport   uint8 = 0x02
	TuyaCmdStatusReport uint8 = 0x06
)

var Tuya = zcl.ClusterDef{
	ID:   TuyaClusterID,
	Name: "Tuya",
	Commands: []zcl.CommandDef{
		{ID: TuyaCmdDataResponse, Name: "data_response", Direction: zcl.DirectionToClient},
		{ID: TuyaCmdDataReport, Name: "data_report", Direction: zcl.DirectionToClient},
		{ID: TuyaCmdStatusReport, Name: "status_report", Direction: zcl.DirectionToClient},
	},
}

// RegisterAll registers every cluster definition the gateway uses.
func RegisterAll(r *zcl.Registry) {
	r.Register(Basic)
	for _, c := range Measurement {
		r.Register(c)
	}
	r.Register(Tuya)
}

package clusters

import "tuya-air/internal/zcl"

// Attribute IDs shared by every measurement cluster.
const (
	AttrMeasuredValue    uint16 = 0x0000
	AttrMinMeasuredValue uint16 = 0x0001
	AttrMaxMeasuredValue uint16 = 0x0002
	AttrTolerance        uint16 = 0x0003
)

func measurementAttrs(valueType uint8) []zcl.AttributeDef {
	return []zcl.AttributeDef{
		{ID: AttrMeasuredValue, Name: "measured_value", Type: valueType, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: AttrMinMeasuredValue, Name: "min_measured_value", Type: valueType, Access: zcl.AccessRead},
		{ID: AttrMaxMeasuredValue, Name: "max_measured_value", Type: valueType, Access: zcl.AccessRead},
		{ID: AttrTolerance, Name: "tolerance", Type: valueType, Access: zcl.AccessRead},
	}
}

// Temperature values are hundredths of a degree Celsius.
var Temperature = zcl.ClusterDef{
	ID:         0x0402,
	Name:       "Temperature Measurement",
	Attributes: measurementAttrs(zcl.TypeInt16),
}

// Humidity values are hundredths of a percent.
var Humidity = zcl.ClusterDef{
	ID:         0x0405,
	Name:       "Relative Humidity Measurement",
	Attributes: measurementAttrs(zcl.TypeUint16),
}

// CarbonDioxide values are a fraction (1 ppm = 1e-6).
var CarbonDioxide = zcl.ClusterDef{
	ID:         0x040D,
	Name:       "Carbon Dioxide (CO2) Measurement",
	Attributes: measurementAttrs(zcl.TypeFloat32),
}

var PM25 = zcl.ClusterDef{
	ID:         0x042A,
	Name:       "PM2.5 Measurement",
	Attributes: measurementAttrs(zcl.TypeFloat32),
}

var Formaldehyde = zcl.ClusterDef{
	ID:         0x042B,
	Name:       "Formaldehyde Measurement",
	Attributes: measurementAttrs(zcl.TypeFloat32),
}

// VOCLevel is not a ZCL standard cluster; Tuya air sensors expose it on 0x042E.
var VOCLevel = zcl.ClusterDef{
	ID:         0x042E,
	Name:       "VOC Level",
	Attributes: measurementAttrs(zcl.TypeFloat32),
}

// Measurement lists the clusters the air-quality profiles translate into.
var Measurement = []zcl.ClusterDef{Temperature, Humidity, CarbonDioxide, PM25, Formaldehyde, VOCLevel}

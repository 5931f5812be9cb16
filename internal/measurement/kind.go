// Package measurement holds the standard measurement clusters a translated
// data point lands in, and the per-device endpoint storing their latest values.
package measurement

import (
	"errors"
	"fmt"

	"tuya-air/internal/zcl"
	"tuya-air/internal/zcl/clusters"
)

var (
	ErrUnknownGroup     = errors.New("unknown measurement group")
	ErrUnknownAttribute = errors.New("unknown measurement attribute")
)

// Kind identifies one measurement group (cluster).
type Kind uint8

const (
	Temperature Kind = iota + 1
	Humidity
	CarbonDioxide
	Formaldehyde
	PM25
	VOC
)

// Attribute names shared by every measurement cluster.
const (
	MeasuredValue    = "measured_value"
	MinMeasuredValue = "min_measured_value"
	MaxMeasuredValue = "max_measured_value"
	Tolerance        = "tolerance"
)

var attributeIDs = map[string]uint16{
	MeasuredValue:    clusters.AttrMeasuredValue,
	MinMeasuredValue: clusters.AttrMinMeasuredValue,
	MaxMeasuredValue: clusters.AttrMaxMeasuredValue,
	Tolerance:        clusters.AttrTolerance,
}

var kindInfo = map[Kind]struct {
	name string
	def  *zcl.ClusterDef
}{
	Temperature:   {"temperature", &clusters.Temperature},
	Humidity:      {"humidity", &clusters.Humidity},
	CarbonDioxide: {"carbon_dioxide_concentration", &clusters.CarbonDioxide},
	Formaldehyde:  {"formaldehyde_concentration", &clusters.Formaldehyde},
	PM25:          {"pm25", &clusters.PM25},
	VOC:           {"voc_level", &clusters.VOCLevel},
}

// Kinds returns every measurement group in declaration order.
func Kinds() []Kind {
	return []Kind{Temperature, Humidity, CarbonDioxide, Formaldehyde, PM25, VOC}
}

// Valid reports whether k is one of the known groups.
func (k Kind) Valid() bool {
	_, ok := kindInfo[k]
	return ok
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ClusterID returns the ZCL cluster ID the group is exposed on.
func (k Kind) ClusterID() uint16 {
	if info, ok := kindInfo[k]; ok {
		return info.def.ID
	}
	return 0
}

// ClusterDef returns a copy of the ZCL definition of the group's cluster.
func (k Kind) ClusterDef() *zcl.ClusterDef {
	if info, ok := kindInfo[k]; ok {
		return info.def.DeepCopy()
	}
	return nil
}

// ParseKind resolves a group name such as "pm25".
func ParseKind(name string) (Kind, error) {
	for k, info := range kindInfo {
		if info.name == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
}

// KindForCluster resolves a ZCL cluster ID.
func KindForCluster(id uint16) (Kind, bool) {
	for k, info := range kindInfo {
		if info.def.ID == id {
			return k, true
		}
	}
	return 0, false
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGroup, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// AttributeID returns the ZCL attribute ID for a measurement attribute name.
func AttributeID(name string) (uint16, error) {
	id, ok := attributeIDs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return id, nil
}

// AttributeName returns the name for a measurement attribute ID.
func AttributeName(id uint16) (string, bool) {
	for name, aid := range attributeIDs {
		if aid == id {
			return name, true
		}
	}
	return "", false
}

package zcl

import (
	"encoding/binary"
	"fmt"
)

// CmdReportAttributes is the ZCL global "Report Attributes" command ID.
const CmdReportAttributes uint8 = 0x0A

// AttributeReport is one record of a Report Attributes payload.
type AttributeReport struct {
	AttrID   uint16
	DataType uint8
	Value    any
}

// ParseAttributeReports decodes the records of a Report Attributes payload:
// repeated attr_id(2 LE) type(1) value. Records decoded before an unknown
// type or a short value are returned together with the error.
func ParseAttributeReports(data []byte) ([]AttributeReport, error) {
	var results []AttributeReport
	for len(data) > 0 {
		if len(data) < 3 {
			return results, fmt.Errorf("zcl: attribute record truncated: %d bytes", len(data))
		}
		r := AttributeReport{
			AttrID:   binary.LittleEndian.Uint16(data[0:2]),
			DataType: data[2],
		}
		data = data[3:]

		val, n, err := DecodeValue(r.DataType, data)
		if err != nil {
			return results, fmt.Errorf("zcl: attribute 0x%04X: %w", r.AttrID, err)
		}
		r.Value = val
		data = data[n:]
		results = append(results, r)
	}
	return results, nil
}

// EncodeAttributeReport builds a single-record Report Attributes payload.
func EncodeAttributeReport(attrID uint16, dataType uint8, val any) ([]byte, error) {
	enc, err := EncodeValue(dataType, val)
	if err != nil {
		return nil, err
	}
	buf := binary.LittleEndian.AppendUint16(nil, attrID)
	buf = append(buf, dataType)
	return append(buf, enc...), nil
}

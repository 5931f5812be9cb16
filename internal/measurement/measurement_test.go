package measurement

import (
	"errors"
	"testing"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		kind    Kind
		name    string
		cluster uint16
	}{
		{Temperature, "temperature", 0x0402},
		{Humidity, "humidity", 0x0405},
		{CarbonDioxide, "carbon_dioxide_concentration", 0x040D},
		{Formaldehyde, "formaldehyde_concentration", 0x042B},
		{PM25, "pm25", 0x042A},
		{VOC, "voc_level", 0x042E},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind.String() != tt.name {
				t.Errorf("String() = %q", tt.kind.String())
			}
			if tt.kind.ClusterID() != tt.cluster {
				t.Errorf("ClusterID() = 0x%04X, want 0x%04X", tt.kind.ClusterID(), tt.cluster)
			}
			parsed, err := ParseKind(tt.name)
			if err != nil || parsed != tt.kind {
				t.Errorf("ParseKind(%q) = %v, %v", tt.name, parsed, err)
			}
			byCluster, ok := KindForCluster(tt.cluster)
			if !ok || byCluster != tt.kind {
				t.Errorf("KindForCluster(0x%04X) = %v, %v", tt.cluster, byCluster, ok)
			}
		})
	}
	if len(Kinds()) != 6 {
		t.Errorf("Kinds() has %d entries", len(Kinds()))
	}
}

func TestParseKindUnknown(t *testing.T) {
	if _, err := ParseKind("ozone"); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("err = %v, want ErrUnknownGroup", err)
	}
	var k Kind
	if err := k.UnmarshalText([]byte("pm10")); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("UnmarshalText err = %v", err)
	}
	if _, err := Kind(0).MarshalText(); err == nil {
		t.Error("MarshalText of zero kind should fail")
	}
}

func TestAttributeIDs(t *testing.T) {
	for name, want := range map[string]uint16{
		MeasuredValue: 0, MinMeasuredValue: 1, MaxMeasuredValue: 2, Tolerance: 3,
	} {
		id, err := AttributeID(name)
		if err != nil || id != want {
			t.Errorf("AttributeID(%q) = %d, %v", name, id, err)
		}
		back, ok := AttributeName(want)
		if !ok || back != name {
			t.Errorf("AttributeName(%d) = %q", want, back)
		}
	}
	if _, err := AttributeID("battery"); !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("err = %v, want ErrUnknownAttribute", err)
	}
}

func TestEndpointSetNotifies(t *testing.T) {
	type change struct {
		group Kind
		attr  string
		value float64
	}
	var got []change
	ep := NewEndpoint(func(g Kind, a string, v float64) {
		got = append(got, change{g, a, v})
	}, Temperature, CarbonDioxide)

	if err := ep.Set(Temperature, MeasuredValue, 2150); err != nil {
		t.Fatal(err)
	}
	if err := ep.Set(Temperature, MeasuredValue, 2200); err != nil {
		t.Fatal(err)
	}

	if v, ok := ep.Get(Temperature, MeasuredValue); !ok || v != 2200 {
		t.Errorf("Get = %v, %v; want latest value 2200", v, ok)
	}
	if len(got) != 2 || got[1] != (change{Temperature, MeasuredValue, 2200}) {
		t.Errorf("listener calls = %+v", got)
	}
}

func TestEndpointSetErrors(t *testing.T) {
	calls := 0
	ep := NewEndpoint(func(Kind, string, float64) { calls++ }, Temperature)

	if err := ep.Set(PM25, MeasuredValue, 10); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("err = %v, want ErrUnknownGroup", err)
	}
	if err := ep.Set(Temperature, "battery", 10); !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("err = %v, want ErrUnknownAttribute", err)
	}
	if calls != 0 {
		t.Errorf("listener called %d times on failed sets", calls)
	}
	if _, ok := ep.Get(Temperature, MeasuredValue); ok {
		t.Error("failed set stored a value")
	}
}

func TestEndpointRestoreAndSnapshot(t *testing.T) {
	calls := 0
	ep := NewEndpoint(func(Kind, string, float64) { calls++ }, Humidity, PM25)
	ep.Restore(map[string]map[string]float64{
		"humidity":    {MeasuredValue: 4520},
		"pm25":        {MeasuredValue: 12, "bogus": 1},
		"temperature": {MeasuredValue: 2000},
		"ozone":       {MeasuredValue: 1},
	})
	if calls != 0 {
		t.Error("Restore should not notify")
	}

	snap := ep.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap["humidity"][MeasuredValue] != 4520 || snap["pm25"][MeasuredValue] != 12 {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, ok := snap["pm25"]["bogus"]; ok {
		t.Error("unknown attribute restored")
	}

	kinds := ep.Kinds()
	if len(kinds) != 2 || kinds[0] != Humidity || kinds[1] != PM25 {
		t.Errorf("Kinds() = %v", kinds)
	}
	if ep.Cluster(Temperature) != nil {
		t.Error("Cluster(Temperature) should be nil")
	}
	if c := ep.Cluster(PM25); c == nil || c.ClusterID() != 0x042A {
		t.Error("Cluster(PM25) wrong")
	}
}

package quirk

import "tuya-air/internal/measurement"

// Built-in profile names.
const (
	ProfileCO2            = "tuya_co2"
	ProfileAirHousekeeper = "tuya_air_housekeeper"
)

// The two profiles disagree on the CO2, VOC and formaldehyde scaling. Each
// variant reports in its own units, so the factors stay per profile.

func tuyaCO2() *Profile {
	return NewProfile(ProfileCO2, "Tuya CO2 sensor (CO2, VOC, formaldehyde, temperature, humidity)",
		[]Signature{
			{Manufacturer: "_TZE200_8ygsuhe1", Model: "TS0601"},
			{Manufacturer: "_TZE200_yvx5lh6k", Model: "TS0601"},
			{Manufacturer: "_TZE200_c2fmom5z", Model: "TS0601"},
			{Manufacturer: "_TZE200_mja3fuja", Model: "TS0601"},
		},
		DataPointMapping{DataPoint: 2, Group: measurement.CarbonDioxide, Transform: ScaleBy(1e-6)},
		DataPointMapping{DataPoint: 18, Group: measurement.Temperature, Transform: ScaleBy(10)},
		DataPointMapping{DataPoint: 19, Group: measurement.Humidity, Transform: ScaleBy(10)},
		DataPointMapping{DataPoint: 21, Group: measurement.VOC, Transform: ScaleBy(1e-6)},
		DataPointMapping{DataPoint: 22, Group: measurement.Formaldehyde, Transform: ScaleBy(1e-6)},
	)
}

func tuyaAirHousekeeper() *Profile {
	return NewProfile(ProfileAirHousekeeper, "Tuya air housekeeper (PM2.5, CO2, VOC, formaldehyde, temperature, humidity)",
		[]Signature{
			{Manufacturer: "_TZE200_dwcarsat", Model: "TS0601"},
		},
		DataPointMapping{DataPoint: 2, Group: measurement.PM25, Transform: DiscardAtOrAbove(DefaultSentinel)},
		DataPointMapping{DataPoint: 18, Group: measurement.Temperature, Transform: ScaleBy(10)},
		DataPointMapping{DataPoint: 19, Group: measurement.Humidity, Transform: ScaleBy(10)},
		DataPointMapping{DataPoint: 20, Group: measurement.Formaldehyde, Transform: Identity()},
		DataPointMapping{DataPoint: 21, Group: measurement.VOC, Transform: Identity()},
		DataPointMapping{DataPoint: 22, Group: measurement.CarbonDioxide, Transform: ScaleBy(1e-6)},
	)
}

// Builtin returns fresh copies of the built-in profiles.
func Builtin() []*Profile {
	return []*Profile{tuyaCO2(), tuyaAirHousekeeper()}
}

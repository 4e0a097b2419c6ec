package consts

const (
	KELVIN        = 273.15 // 0 degC (K)
	TNOM          = 298.15 // Nominal cell temperature (K)
	SECS_PER_HOUR = 3600.0 // Capacity integration factor (s/h)
)

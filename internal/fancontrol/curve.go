package fancontrol

// Duty codes are raw 0..255 PWM values as written to the sysfs duty file.
const (
	// DutyIdle is the floor applied at low temperatures and when no
	// reading is available.
	DutyIdle uint8 = 77
	// DutyMax is applied at 60°C and above.
	DutyMax uint8 = 255
)

// dutyTable maps temperatures 26..59°C to duty codes, 5 per degree above
// the idle floor. Kept as a literal table so the applied staircase is
// visible at a glance.
var dutyTable = [34]uint8{
	82, 87, 92, 97, 102, 107, 112, 117, 122, 127,
	132, 137, 142, 147, 152, 157, 162, 167, 172, 177,
	182, 187, 192, 197, 202, 207, 212, 217, 222, 227,
	232, 237, 242, 247,
}

// DutyFor returns the PWM duty code for a temperature in whole degrees C.
// The mapping is a monotone staircase with no hysteresis: the idle floor
// at or below 25, the maximum at or above 60, +5 per degree in between.
func DutyFor(tempC int) uint8 {
	switch {
	case tempC <= 25:
		return DutyIdle
	case tempC >= 60:
		return DutyMax
	default:
		return dutyTable[tempC-26]
	}
}

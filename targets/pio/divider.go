package pio

// cyclesPerBit is the PIO clock cycles spent on each bit
const cyclesPerBit = 8

// clockDivider returns the 16.8 fixed-point PIO clock divider that gives
// cyclesPerBit state machine cycles per bit at baud
func clockDivider(sysHz, baud uint32) (whole uint16, frac uint8) {
	if baud == 0 {
		return 0, 0
	}
	div := uint64(sysHz) * 256 / (uint64(baud) * cyclesPerBit)
	if div < 256 {
		return 1, 0
	}
	if div > 0xFFFFFF {
		return 0xFFFF, 0xFF
	}
	return uint16(div >> 8), uint8(div)
}

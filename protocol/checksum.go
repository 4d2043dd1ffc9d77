package protocol

// Checksum is the 8-bit sum of every byte in data, the Harp trailer
func Checksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return sum
}

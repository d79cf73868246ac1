package hash

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the Castagnoli checksum of data. Record frames and sidecar
// indexes are sealed with it.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// UpdateCRC32C extends crc with data, so a frame can be checksummed in pieces
// without concatenating label and image bytes first.
func UpdateCRC32C(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, castagnoli, data)
}


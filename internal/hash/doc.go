// Package hash holds the CRC32-Castagnoli checksum used by record frames and
// sidecar indexes.
package hash

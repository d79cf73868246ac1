// Package store implements the append-only record store: a single file of
// length-prefixed, checksummed records behind a fixed header, plus the
// in-memory index built by scanning it once at open.
//
// File layout (little endian):
//
//	header  [magic "PIXPSTOR"][version u32][flags u32][count u64][reserved 8]
//	record  [bodyLen u32][crc32c u32][kind u8][compression u8][reserved u16]
//	        [class i32][labelLen u32][imageLen u32][label][image][pad to 8]
//
// A sidecar "<name>.idx" may hold a zstd-compressed copy of the index. It is
// ignored when it does not match the store's size and record count.
package store

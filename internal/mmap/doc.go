// Package mmap maps record store files read-only so workers can issue
// positioned reads without a shared file cursor.
//
//	m, err := mmap.Open("train.pxp")
//	if err != nil { ... }
//	defer m.Close()
//
//	buf := make([]byte, 24)
//	_, err = m.ReadAt(buf, off)
//
// Unix uses mmap(2); Windows uses CreateFileMapping/MapViewOfFile.
package mmap

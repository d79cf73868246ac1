// Package cache keeps recently read blocks of remote record stores in memory.
package cache

package worker

import "fmt"

// WorkerState is what one worker is doing.
type WorkerState int32

const (
	Idle WorkerState = iota
	Fetching
	Reading
	Decoding
	Augmenting
	Enqueuing
	Skipping
)

func (s WorkerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Reading:
		return "reading"
	case Decoding:
		return "decoding"
	case Augmenting:
		return "augmenting"
	case Enqueuing:
		return "enqueuing"
	case Skipping:
		return "skipping"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// PoolState is the lifecycle state of a Pool.
type PoolState int32

const (
	// Stopped: no worker is running.
	Stopped PoolState = iota
	// Running: workers are drawing records.
	Running
	// Draining: the source is exhausted and the last workers are finishing.
	Draining
)

func (s PoolState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Draining:
		return "draining"
	default:
		return fmt.Sprintf("PoolState(%d)", int32(s))
	}
}

// Package record defines the unit stored in a record store: one encoded image
// plus its label, and the encodings of each label kind.
package record

import (
	"errors"
	"fmt"
	"math"
)

// LabelKind is the structural type of a record's label.
type LabelKind uint8

const (
	// None marks an unlabeled record.
	None LabelKind = iota
	// Scalar is a single float32, typically a class id.
	Scalar
	// Vector is a fixed-length float32 vector.
	Vector
	// BoxList is a list of axis-aligned boxes in pixel coordinates.
	BoxList
	// Mask is an image aligned pixel-for-pixel with the record image.
	Mask
	// Points is a list of keypoints in pixel coordinates.
	Points
)

func (k LabelKind) String() string {
	switch k {
	case None:
		return "none"
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	case BoxList:
		return "boxes"
	case Mask:
		return "mask"
	case Points:
		return "points"
	default:
		return fmt.Sprintf("LabelKind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k LabelKind) Valid() bool {
	return k <= Points
}

// NoClass is the class of records that carry no discrete class.
const NoClass int32 = -1

// ErrMalformedLabel is returned when a label payload does not decode as its
// declared kind.
var ErrMalformedLabel = errors.New("record: malformed label")

// Record is one stored (image, label) unit. ID is the record number assigned
// by the store and is ignored on append.
type Record struct {
	ID    int
	Kind  LabelKind
	Class int32
	Label []byte
	Image []byte
}

// ClassOf derives the stratification class of a scalar label: integral,
// non-negative values are classes, anything else is NoClass.
func ClassOf(v float32) int32 {
	f := float64(v)
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return NoClass
	}
	return int32(f)
}

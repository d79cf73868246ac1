package record

import "image"

// NewUnlabeled builds a record with no label.
func NewUnlabeled(img []byte) Record {
	return Record{Kind: None, Class: NoClass, Image: img}
}

// NewScalar builds a scalar-labeled record. Integral, non-negative labels
// double as the record's class.
func NewScalar(label float32, img []byte) Record {
	return Record{Kind: Scalar, Class: ClassOf(label), Label: EncodeScalar(label), Image: img}
}

// NewVector builds a vector-labeled record.
func NewVector(label []float32, img []byte) Record {
	return Record{Kind: Vector, Class: NoClass, Label: EncodeVector(label), Image: img}
}

// NewBoxes builds a box-labeled record. class is the record-level class used
// for stratification, or NoClass.
func NewBoxes(boxes []Box, class int32, img []byte) (Record, error) {
	label, err := EncodeBoxes(nil, boxes)
	if err != nil {
		return Record{}, err
	}
	return Record{Kind: BoxList, Class: class, Label: label, Image: img}, nil
}

// NewPoints builds a keypoint-labeled record.
func NewPoints(points []Point, class int32, img []byte) (Record, error) {
	label, err := EncodePoints(nil, points)
	if err != nil {
		return Record{}, err
	}
	return Record{Kind: Points, Class: class, Label: label, Image: img}, nil
}

// NewMask builds a mask-labeled record.
func NewMask(mask image.Image, class int32, img []byte) (Record, error) {
	label, err := EncodeMask(mask)
	if err != nil {
		return Record{}, err
	}
	return Record{Kind: Mask, Class: class, Label: label, Image: img}, nil
}

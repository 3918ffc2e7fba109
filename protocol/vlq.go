package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// maxVLQBytes bounds a 32-bit value: 5 groups of 7 bits
const maxVLQBytes = 5

// EncodeVLQInt writes v most significant group first. Values in
// [-32, 96) fit in one byte; bit 0x80 marks a continuation byte.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [maxVLQBytes]byte
	n := 0
	for shift, lo := 28, int32(-(1 << 26)); shift > 0; shift, lo = shift-7, lo>>7 {
		if v < lo || v >= 3*-lo {
			buf[n] = byte((v>>shift)&0x7F) | 0x80
			n++
		}
	}
	buf[n] = byte(v & 0x7F)
	output.Output(buf[:n+1])
}

// EncodeVLQUint encodes an unsigned integer to VLQ format
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes a signed integer and advances data past it
func DecodeVLQInt(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	if c&0x60 == 0x60 {
		// Sign extend
		v |= ^uint32(0x1F)
	}

	for i := 1; c&0x80 != 0; i++ {
		if i >= maxVLQBytes {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = (v << 7) | (c & 0x7F)
	}
	return int32(v), nil
}

// DecodeVLQUint decodes a VLQ unsigned integer from the data slice
func DecodeVLQUint(data *[]byte) (uint32, error) {
	val, err := DecodeVLQInt(data)
	return uint32(val), err
}

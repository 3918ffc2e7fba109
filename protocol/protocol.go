// Package protocol implements the framed serial protocol used to carry PWM
// commands between a host and the firmware.
//
// A message is: length, sequence, VLQ payload, CRC16 (big endian), sync byte.
package protocol

import "bytes"

// Version represents the sgpwm wire protocol version
const Version = "0.1.0"

const (
	MessageMax         = 512 // Scratch output capacity
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10

	// Message sequence masks
	MessageSeqMask = 0x0F
)

// Message represents one validated frame
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // Frame data without header/trailer
	CRC      uint16
}

// nextSequence returns the sequence following seq, wrapping within 0x10-0x1F
func nextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// appendMessage frames payload with the given sequence
func appendMessage(dst []byte, seq uint8, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, uint8(MessageHeaderSize+len(payload)+MessageTrailerSize), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync)
}

// frameScanner finds valid messages in a byte stream, dropping garbage and
// resynchronizing on the sync byte after any framing error
type frameScanner struct {
	desynced bool
	onResync func()
}

// next returns the first valid message in data and the bytes after it.
// When no complete message is available ok is false and rest holds the bytes
// that must be kept for the next call.
func (s *frameScanner) next(data []byte) (msg Message, rest []byte, ok bool) {
	for len(data) > 0 {
		if s.desynced {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				return Message{}, nil, false
			}
			data = data[i+1:]
			s.desynced = false
			if s.onResync != nil {
				s.onResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		n := int(data[MessagePositionLen])
		seq := data[MessagePositionSeq]
		if n < MessageLengthMin || n > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			s.desynced = true
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-MessageTrailerSync] != MessageValueSync {
			s.desynced = true
			continue
		}
		crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
		if crc != CRC16(data[:n-MessageTrailerSize]) {
			s.desynced = true
			continue
		}

		return Message{
			Length:   uint8(n),
			Sequence: seq,
			Payload:  data[MessageHeaderSize : n-MessageTrailerSize],
			CRC:      crc,
		}, data[n:], true
	}
	return Message{}, data, false
}

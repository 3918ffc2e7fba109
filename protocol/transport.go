package protocol

import "sync/atomic"

// CommandHandler is a function type for handling decoded commands
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the link: it validates incoming frames,
// dispatches their commands and answers every frame with an ACK/NAK carrying
// the next expected sequence.
type Transport struct {
	scanner frameScanner

	// Expected sequence from the host (0x10-0x1F). ACKs and responses carry
	// the same value.
	nextSeq uint32 // atomic uint8

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func() // Called when host reset is detected
	flushCallback func() // Called to push ACKs out immediately
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{
		nextSeq: MessageDest,
		output:  output,
		handler: handler,
	}
	t.scanner.onResync = t.encodeAckNak
	return t
}

// Receive consumes every complete frame in input
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	for {
		msg, rest, ok := t.scanner.next(data)
		data = rest
		if !ok {
			break
		}

		expected := t.sequence()
		if msg.Sequence == MessageDest && expected != MessageDest {
			// Host restarted its sequence
			atomic.StoreUint32(&t.nextSeq, MessageDest)
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		// Frames with an unexpected sequence are answered with a NAK only
		if msg.Sequence == expected {
			atomic.StoreUint32(&t.nextSeq, uint32(nextSequence(expected)))
			_ = t.parseFrame(msg.Payload)
		}
		t.encodeAckNak()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame dispatches every command in a frame payload
func (t *Transport) parseFrame(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.scanner.desynced = true
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.scanner.desynced = true
			return err
		}
		if t.handler == nil {
			continue
		}
		// Handler errors abandon the rest of the frame without desyncing
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) encodeAckNak() {
	seq := t.sequence()
	crc := CRC16([]byte{MessageLengthMin, seq})
	t.output.Output([]byte{MessageLengthMin, seq, uint8(crc >> 8), uint8(crc), MessageValueSync})
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one frame whose payload is produced by frameData
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	cursor := t.output.CurPosition()
	t.output.Output([]byte{0, t.sequence()})
	frameData(t.output)

	length := len(t.output.DataSince(cursor)) + MessageTrailerSize
	t.output.Update(cursor+MessagePositionLen, uint8(length))

	crc := CRC16(t.output.DataSince(cursor))
	t.output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
}

// SendCommand sends a command (or response) with arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset restores the power-on state (after USB reconnect)
func (t *Transport) Reset() {
	t.scanner.desynced = false
	atomic.StoreUint32(&t.nextSeq, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback to be called when host reset is detected
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback to immediately flush ACK messages
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

func (t *Transport) sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.nextSeq))
}

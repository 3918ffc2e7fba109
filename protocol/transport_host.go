//go:build !tinygo

package protocol

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// DefaultAckTimeout is how long SendCommand waits for the firmware ACK
const DefaultAckTimeout = 2 * time.Second

var ErrTransportClosed = errors.New("transport stopped")

// ResponseHandler is a function type for handling received responses from MCU
type ResponseHandler func(cmdID uint16, data *[]byte) error

// HostTransport is the host side of the link: it sends commands, waits for
// the matching ACK and queues responses.
type HostTransport struct {
	port io.ReadWriteCloser

	// Sequence of the next command (0x10-0x1F)
	currentSeq uint32 // atomic uint8

	scanner frameScanner
	input   *FifoBuffer

	ackChan      chan Message
	responseChan chan Message

	responseHandler ResponseHandler

	// Serializes command/ACK round trips
	sendMu sync.Mutex

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewHostTransport creates a host transport and starts its read loop
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		input:        NewFifoBuffer(512),
		ackChan:      make(chan Message, 1),
		responseChan: make(chan Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends a command to the MCU and waits for ACK
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout sends a command with a custom ACK timeout
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()
	if n := MessageHeaderSize + len(payload) + MessageTrailerSize; n > MessageLengthMax {
		return errors.Errorf("message too long: %d bytes (max %d)", n, MessageLengthMax)
	}

	seq := t.CurrentSequence()
	msg := appendMessage(nil, seq, payload)
	n, err := t.port.Write(msg)
	if err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	if n != len(msg) {
		return errors.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}

	return errors.Wrap(t.waitForAck(seq, timeout), "ACK timeout or error")
}

// waitForAck waits for the ACK of the frame sent with seq. The firmware
// acknowledges with the next sequence it expects.
func (t *HostTransport) waitForAck(seq uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-t.ackChan:
		want := nextSequence(seq)
		if ack.Sequence != want {
			return errors.Errorf("sequence mismatch: expected 0x%02x, got 0x%02x", want, ack.Sequence)
		}
		atomic.StoreUint32(&t.currentSeq, uint32(want))
		return nil
	case <-timer.C:
		return errors.Errorf("ACK timeout after %v", timeout)
	case <-t.stopChan:
		return ErrTransportClosed
	}
}

// ReceiveResponse receives a response message with timeout
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return Message{}, errors.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return Message{}, ErrTransportClosed
	}
}

// SetResponseHandler sets a callback for handling responses asynchronously.
// It must be set before the first command is sent.
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.responseHandler = handler
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.input.Write(buffer[:n])
			t.processMessages()
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processMessages() {
	data := t.input.Data()
	total := len(data)
	for {
		msg, rest, ok := t.scanner.next(data)
		data = rest
		if !ok {
			break
		}
		// The FIFO reuses its storage
		msg.Payload = append([]byte(nil), msg.Payload...)
		t.dispatchMessage(msg)
	}
	t.input.Pop(total - len(data))
}

func (t *HostTransport) dispatchMessage(msg Message) {
	// An empty payload is an ACK/NAK
	if len(msg.Payload) == 0 {
		select {
		case t.ackChan <- msg:
		default:
		}
		return
	}

	if t.responseHandler != nil {
		payload := msg.Payload
		if cmdID, err := DecodeVLQUint(&payload); err == nil {
			_ = t.responseHandler(uint16(cmdID), &payload)
		}
	}

	// Keep the newest responses when nobody is reading
	select {
	case t.responseChan <- msg:
	default:
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the read loop and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		err = t.port.Close()
		<-t.doneChan
	})
	return err
}

// Reset drops buffered state and restarts the sequence at 0x10
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.currentSeq, MessageDest)
	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	t.DiscardResponses()
}

// DiscardResponses drops queued responses, such as late replies to a command
// that already timed out, and returns how many were dropped
func (t *HostTransport) DiscardResponses() int {
	n := 0
	for {
		select {
		case <-t.responseChan:
			n++
		default:
			return n
		}
	}
}

// PendingResponses returns the number of queued responses
func (t *HostTransport) PendingResponses() int {
	return len(t.responseChan)
}

// CurrentSequence returns the sequence of the next command
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}

package core

import "errors"

// ErrorKind classifies why a PWM configuration call was aborted
type ErrorKind uint8

const (
	KindPinNotFound ErrorKind = iota + 1 // Pin absent or not PWM capable
	KindMux                              // Pad could not be routed to PWM
	KindInit                             // Peripheral instance failed to initialize
	KindChannelBusy                      // Channel owned by another pin
	KindProgram                          // Stop/config/start call failed
)

var (
	ErrPinNotFound = errors.New("pin is not used as PWM func")
	ErrMux         = errors.New("pin fails to config as PWM func")
	ErrInit        = errors.New("PWM peripheral init failed")
	ErrChannelBusy = errors.New("PWM channel owned by another pin")
	ErrProgram     = errors.New("PWM channel programming failed")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindPinNotFound:
		return ErrPinNotFound
	case KindMux:
		return ErrMux
	case KindInit:
		return ErrInit
	case KindChannelBusy:
		return ErrChannelBusy
	case KindProgram:
		return ErrProgram
	}
	return nil
}

func (k ErrorKind) String() string {
	switch k {
	case KindPinNotFound:
		return "pin_not_found"
	case KindMux:
		return "mux"
	case KindInit:
		return "init"
	case KindChannelBusy:
		return "channel_busy"
	case KindProgram:
		return "program"
	}
	return "unknown"
}

// Error is returned by Controller operations. It matches the sentinel of its
// Kind with errors.Is and unwraps to the driver error, if any.
type Error struct {
	Pin  uint8
	Kind ErrorKind
	Err  error // Underlying driver error, may be nil
}

func (e *Error) Error() string {
	msg := "pin GPIO " + itoa(int(e.Pin)) + ": "
	if s := e.Kind.sentinel(); s != nil {
		msg += s.Error()
	} else {
		msg += "PWM error kind " + itoa(int(e.Kind))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or 0 if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

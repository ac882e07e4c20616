package thermocouple

import "fmt"

// FaultKind tags the kind of thermocouple fault observed (S3, S4.2). It
// replaces the source's exception-tunneled ErrorMessage(code, text) with a
// closed Go type (S9).
type FaultKind int

const (
	// InvalidReading indicates a malformed frame from the sensor - a
	// reserved protocol bit set that should always read zero - as opposed
	// to a signalling failure the sensor reports honestly. Fatal.
	InvalidReading FaultKind = iota
	// ZeroReading indicates a persistent exact-zero reading. Fatal.
	ZeroReading
	// BelowZero indicates a negative reading. Fatal.
	BelowZero
	// AboveLimit indicates the reading saturated at the sensor's hard
	// ceiling. Recoverable.
	AboveLimit
	// ReadError indicates the sensor's open/short/ground signalling
	// failed. Recoverable.
	ReadError
)

func (k FaultKind) String() string {
	switch k {
	case InvalidReading:
		return "thermocouple-invalid_reading"
	case ZeroReading:
		return "thermocouple-zero_reading"
	case BelowZero:
		return "thermocouple-below_zero"
	case AboveLimit:
		return "thermocouple-above_limit"
	case ReadError:
		return "thermocouple-read_error"
	default:
		return "thermocouple-unknown"
	}
}

// Fatal reports whether this kind requires a full reboot to clear.
func (k FaultKind) Fatal() bool {
	switch k {
	case InvalidReading, ZeroReading, BelowZero:
		return true
	default:
		return false
	}
}

// Recoverable reports whether this kind is expected to resolve within the
// next tick or two.
func (k FaultKind) Recoverable() bool {
	return !k.Fatal()
}

// Fault is the typed error carried from the conditioner to its caller,
// replacing the source's ErrorMessage(code, text).
type Fault struct {
	Kind FaultKind
	Text string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("[%s] %s", f.Kind, f.Text)
}

// NewFault builds a Fault with the given kind and human-readable detail.
func NewFault(kind FaultKind, text string) *Fault {
	return &Fault{Kind: kind, Text: text}
}

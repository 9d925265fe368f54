// Package trace renders payloads as hex and ASCII for the bus debug flag.
package trace

import (
	"strings"
	"sync/atomic"

	"github.com/billm/pezbus/internal/logger"
)

const (
	bytesPerLine = 16
	groupSize    = 8
)

// Step names the point in the bus where a payload was traced
type Step string

const (
	StepSend    Step = "send"
	StepRoute   Step = "route"
	StepReceive Step = "receive"
)

// Lines renders payload as dump lines of the form
//
//	00000000  01 02 03 04 05 06 07 08  09 0a 0b 0c 0d 0e 0f 10  |................|
//
// Non-printable bytes are shown as '.' in the ASCII column.
func Lines(payload []byte) []string {
	if len(payload) == 0 {
		return nil
	}

	const hexdigits = "0123456789abcdef"
	lines := make([]string, 0, (len(payload)+bytesPerLine-1)/bytesPerLine)

	var sb strings.Builder
	for off := 0; off < len(payload); off += bytesPerLine {
		end := off + bytesPerLine
		if end > len(payload) {
			end = len(payload)
		}
		row := payload[off:end]

		sb.Reset()
		for shift := 28; shift >= 0; shift -= 4 {
			sb.WriteByte(hexdigits[(off>>uint(shift))&0xf])
		}
		sb.WriteString("  ")

		for i := 0; i < bytesPerLine; i++ {
			if i == groupSize {
				sb.WriteByte(' ')
			}
			if i < len(row) {
				sb.WriteByte(hexdigits[row[i]>>4])
				sb.WriteByte(hexdigits[row[i]&0xf])
			} else {
				sb.WriteString("  ")
			}
			sb.WriteByte(' ')
		}

		sb.WriteString(" |")
		for _, b := range row {
			if b >= 0x20 && b <= 0x7e {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('|')

		lines = append(lines, sb.String())
	}

	return lines
}

// Dump renders payload as newline-terminated dump lines
func Dump(payload []byte) string {
	lines := Lines(payload)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Tracer emits payload dumps when enabled. It only observes.
type Tracer struct {
	enabled atomic.Bool
	logger  *logger.Logger
}

// New creates a tracer writing through log
func New(enabled bool, log *logger.Logger) *Tracer {
	if log == nil {
		log = logger.Global()
	}
	t := &Tracer{logger: log.With("component", "trace")}
	t.enabled.Store(enabled)
	return t
}

// SetEnabled toggles tracing at runtime
func (t *Tracer) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// Enabled reports whether tracing is on
func (t *Tracer) Enabled() bool {
	return t.enabled.Load()
}

// Payload logs one line per dump row, tagged with the step and identity
func (t *Tracer) Payload(step Step, name string, payload []byte) {
	if !t.enabled.Load() {
		return
	}

	t.logger.Info("payload", "step", string(step), "name", name, "size", len(payload))
	for _, line := range Lines(payload) {
		t.logger.Info("payload", "step", string(step), "name", name, "dump", line)
	}
}

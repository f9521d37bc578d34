package supervisor

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

const tailLimit = 4096

// lineWriter forwards a subprocess output stream to the logger line by line
// and keeps a bounded tail for startup diagnostics.
type lineWriter struct {
	log    zerolog.Logger
	stream string

	mu   sync.Mutex
	buf  bytes.Buffer
	tail bytes.Buffer
}

func newLineWriter(log zerolog.Logger, stream string) *lineWriter {
	return &lineWriter{log: log, stream: stream}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	w.tail.Write(p)
	if w.tail.Len() > tailLimit {
		trimmed := w.tail.Bytes()[w.tail.Len()-tailLimit:]
		var nt bytes.Buffer
		nt.Write(trimmed)
		w.tail = nt
	}
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line, put it back for the next Write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		if trimmed := bytes.TrimRight([]byte(line), "\r\n"); len(trimmed) > 0 {
			w.log.Debug().Str("stream", w.stream).Msg(string(trimmed))
		}
	}
	return len(p), nil
}

// Tail returns the last few KiB of output seen so far.
func (w *lineWriter) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tail.String()
}

// Flush logs any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.log.Debug().Str("stream", w.stream).Msg(w.buf.String())
		w.buf.Reset()
	}
}

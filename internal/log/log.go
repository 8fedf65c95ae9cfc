// Package log holds the verbosity levels shipit logs at and a logr sink
// that records into a buffer, used to assert on log output in tests.
// Loggers are carried in context.Context; see logr.FromContextOrDiscard.
package log

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

const (
	DBG int = 1
	TRC int = 2
)

// NewBufferSink returns a sink that appends one line per log call to buffer.
func NewBufferSink(buffer *bytes.Buffer) logr.LogSink {
	return &bufferSink{
		buffer: buffer,
		mu:     &sync.Mutex{},
	}
}

type bufferSink struct {
	name   string
	values []interface{}
	buffer *bytes.Buffer
	mu     *sync.Mutex
}

var _ logr.LogSink = &bufferSink{}

func (s *bufferSink) Enabled(level int) bool {
	return true
}

func (s *bufferSink) Error(err error, msg string, keysAndValues ...interface{}) {
	s.write(fmt.Sprintf("%s %v %s %v\n", s.name, err, msg, append(s.values, keysAndValues...)))
}

func (s *bufferSink) Info(level int, msg string, keysAndValues ...interface{}) {
	s.write(fmt.Sprintf("%s %s %v\n", s.name, msg, append(s.values, keysAndValues...)))
}

func (s *bufferSink) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.WriteString(line)
}

func (s *bufferSink) Init(info logr.RuntimeInfo) {}

func (s *bufferSink) WithName(name string) logr.LogSink {
	return &bufferSink{
		name:   name,
		values: s.values,
		buffer: s.buffer,
		mu:     s.mu,
	}
}

func (s *bufferSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	values := make([]interface{}, 0, len(s.values)+len(keysAndValues))
	values = append(values, s.values...)
	values = append(values, keysAndValues...)
	return &bufferSink{
		name:   s.name,
		values: values,
		buffer: s.buffer,
		mu:     s.mu,
	}
}

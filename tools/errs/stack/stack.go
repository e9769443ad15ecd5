package stack

import (
	"fmt"
	"runtime"
	"strings"
)

const maxDepth = 16

// stackError 给底层错误附带调用栈；%+v 时打印栈帧
type stackError struct {
	err error
	pcs []uintptr
}

func New(err error, skip int) error {
	if err == nil {
		return nil
	}
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip, pcs)
	return &stackError{err: err, pcs: pcs[:n]}
}

func (e *stackError) Error() string { return e.err.Error() }

func (e *stackError) Unwrap() error { return e.err }

func (e *stackError) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			var sb strings.Builder
			sb.WriteString(e.err.Error())
			frames := runtime.CallersFrames(e.pcs)
			for {
				fr, more := frames.Next()
				sb.WriteString("\n    ")
				sb.WriteString(fr.Function)
				sb.WriteString(" ")
				sb.WriteString(fmt.Sprintf("%s:%d", fr.File, fr.Line))
				if !more {
					break
				}
			}
			_, _ = f.Write([]byte(sb.String()))
			return
		}
		fallthrough
	case 's':
		_, _ = f.Write([]byte(e.err.Error()))
	}
}

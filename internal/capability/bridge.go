package capability

import (
	"bytes"
	"time"

	"tawqa/util"
)

// Shell hands the connection to a spawned command instead of the
// terminal.  Output from the command is sent to the peer with bare LFs
// expanded to CRLF; input from the peer is delivered line by line, and
// the line "exit" ends the session without reaching the command.
//
// Builds tagged noexec carry the type but refuse to spawn anything.
type Shell struct {
	Path string

	// Grace is how long the command gets between SIGTERM and SIGKILL.
	Grace time.Duration
}

// exitKeyword is the client line that ends a bridged session.
var exitKeyword = []byte("exit\r\n")

// maxLine is the largest line handed to the command in one write.
const maxLine = util.TransferUnit - 1

// NormalizeNewlines appends src to dst with every LF that is not
// already preceded by CR turned into CRLF.  prev is the last byte of
// the previous chunk, so a CRLF split across chunks is left alone.  It
// returns the extended dst and the new last byte.
func NormalizeNewlines(dst, src []byte, prev byte) ([]byte, byte) {
	for _, b := range src {
		if b == '\n' && prev != '\r' {
			dst = append(dst, '\r')
		}
		dst = append(dst, b)
		prev = b
	}
	return dst, prev
}

// lineAssembler collects client bytes into lines.  CR completes a line
// and gets an LF appended; an LF right after that CR is dropped.
type lineAssembler struct {
	buf     []byte
	afterCR bool
}

// feed adds one byte and returns a completed line, or nil.
func (a *lineAssembler) feed(b byte) []byte {
	if b == '\n' && a.afterCR {
		a.afterCR = false
		return nil
	}
	a.afterCR = b == '\r'
	a.buf = append(a.buf, b)
	if b == '\r' {
		a.buf = append(a.buf, '\n')
	}
	if b == '\r' || b == '\n' || len(a.buf) >= maxLine {
		return a.take()
	}
	return nil
}

// take returns whatever is buffered and resets the assembler.
func (a *lineAssembler) take() []byte {
	line := a.buf
	a.buf = a.buf[:0:0]
	return line
}

// isExit reports whether line is the exit keyword, in any case.
func isExit(line []byte) bool {
	return bytes.EqualFold(line, exitKeyword)
}

// toShell converts a completed line to the form written to the
// command: a trailing CRLF becomes LF.
func toShell(line []byte) []byte {
	if bytes.HasSuffix(line, []byte("\r\n")) {
		line = append(line[:len(line)-2], '\n')
	}
	return line
}

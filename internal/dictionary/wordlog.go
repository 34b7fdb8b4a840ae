package dictionary

import (
	"io"
	"os"
)

// wordLog is the persisted side of the store: an append-only list of words.
type wordLog interface {
	// Append durably records word. It must not return before the data has
	// been flushed to stable storage.
	Append(word string) error
	Close() error
}

// fileLog appends one word per line to the dictionary file and fsyncs each
// write. The append handle is opened on the first Append, so a file that is
// readable but not writable still loads; its inserts fail one by one.
type fileLog struct {
	path string
	f    *os.File

	// open returns the append handle. Replaced in tests.
	open func(path string) (*os.File, error)

	// needsNewline is set when the loaded file did not end with '\n'; the
	// first append then starts a fresh line.
	needsNewline bool
}

func newFileLog(path string) *fileLog {
	return &fileLog{path: path, open: openAppend}
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
}

// checkTrailingNewline inspects the last byte of the loaded file r.
func (l *fileLog) checkTrailingNewline(r *os.File) error {
	info, err := r.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	var last [1]byte
	if _, err := r.ReadAt(last[:], info.Size()-1); err != nil && err != io.EOF {
		return err
	}
	l.needsNewline = last[0] != '\n'
	return nil
}

func (l *fileLog) Append(word string) error {
	if l.f == nil {
		f, err := l.open(l.path)
		if err != nil {
			return err
		}
		l.f = f
	}

	line := make([]byte, 0, len(word)+2)
	if l.needsNewline {
		line = append(line, '\n')
	}
	line = append(line, word...)
	line = append(line, '\n')
	if _, err := l.f.Write(line); err != nil {
		return err
	}
	if err := l.f.Sync(); err != nil {
		return err
	}
	l.needsNewline = false
	return nil
}

func (l *fileLog) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

package service

import (
	"fmt"
	"io"
	"sync"
)

// WriterObserver prints streamed tokens and the citation block to a writer,
// the way a console help desk echoes its answer.
type WriterObserver struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriterObserver(out io.Writer) *WriterObserver { return &WriterObserver{out: out} }

func (w *WriterObserver) OnToken(token string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = io.WriteString(w.out, token)
}

func (w *WriterObserver) OnSources(block string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintf(w.out, "\n%s\n", block)
}

package main

import "io"

// FrameSink accepts whole PCM frames. ULPAudioOutput is one.
type FrameSink interface {
	Write(p []byte) (int, error)
	FrameSize() int
}

// FrameWriter adapts a FrameSink to io.Writer. Bytes of a frame split across
// calls are held back until the rest of the frame arrives, so io.Copy and
// friends can feed the output with arbitrary chunk sizes.
type FrameWriter struct {
	sink    FrameSink
	pending []byte
}

func NewFrameWriter(sink FrameSink) *FrameWriter {
	return &FrameWriter{sink: sink}
}

var _ io.Writer = (*FrameWriter)(nil)

func (w *FrameWriter) Write(p []byte) (int, error) {
	size := w.sink.FrameSize()
	if size <= 0 {
		return 0, ErrNotRunning
	}
	total := len(p)

	if len(w.pending) > 0 {
		need := size - len(w.pending)
		if len(p) < need {
			w.pending = append(w.pending, p...)
			return total, nil
		}
		w.pending = append(w.pending, p[:need]...)
		p = p[need:]
		if _, err := w.sink.Write(w.pending); err != nil {
			// the held-back frame is dropped; p[:need] counts as consumed
			w.pending = w.pending[:0]
			return total - len(p), err
		}
		w.pending = w.pending[:0]
	}

	whole := len(p) - len(p)%size
	if whole > 0 {
		n, err := w.sink.Write(p[:whole])
		if err != nil {
			return total - len(p) + n, err
		}
	}
	w.pending = append(w.pending, p[whole:]...)
	return total, nil
}

// Pending returns the number of bytes held back from an incomplete frame.
func (w *FrameWriter) Pending() int {
	return len(w.pending)
}

// Reset drops any held-back bytes.
func (w *FrameWriter) Reset() {
	w.pending = w.pending[:0]
}

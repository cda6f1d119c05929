package runtime

import (
	"io"
	"sync"
)

// stdinPump is the only reader of the process's stdin. Containers attach
// to it in turn, so input typed after one container exits reaches the next
// one instead of a reader left behind by the previous run.
type stdinPump struct {
	src   io.Reader
	start sync.Once

	mu     sync.Mutex
	cond   *sync.Cond
	target *pumpTarget
	eof    bool
}

type pumpTarget struct {
	w          io.Writer
	closeWrite func() error
}

func newStdinPump(src io.Reader) *stdinPump {
	p := &stdinPump{src: src}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Attach routes stdin to w until the returned detach function is called.
// closeWrite is called once stdin reaches EOF while w is attached.
func (p *stdinPump) Attach(w io.Writer, closeWrite func() error) func() {
	p.start.Do(func() { go p.loop() })

	t := &pumpTarget{w: w, closeWrite: closeWrite}

	p.mu.Lock()
	p.target = t
	eof := p.eof
	p.cond.Broadcast()
	p.mu.Unlock()

	if eof {
		_ = closeWrite()
	}

	return func() {
		p.mu.Lock()
		if p.target == t {
			p.target = nil
		}
		p.mu.Unlock()
	}
}

func (p *stdinPump) loop() {
	buf := make([]byte, 32*1024)
	for {
		n, err := p.src.Read(buf)
		if n > 0 {
			p.deliver(buf[:n])
		}
		if err != nil {
			p.mu.Lock()
			p.eof = true
			t := p.target
			p.mu.Unlock()
			if t != nil {
				_ = t.closeWrite()
			}
			return
		}
	}
}

// deliver blocks until some container has taken the whole chunk.
func (p *stdinPump) deliver(chunk []byte) {
	for len(chunk) > 0 {
		// Wait for a container to attach.
		p.mu.Lock()
		for p.target == nil {
			p.cond.Wait()
		}
		t := p.target
		p.mu.Unlock()

		n, err := t.w.Write(chunk)
		chunk = chunk[n:]
		if err != nil {
			// The container went away; keep the rest for the next one.
			p.mu.Lock()
			if p.target == t {
				p.target = nil
			}
			p.mu.Unlock()
		}
	}
}

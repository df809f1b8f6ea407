package progress

import (
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Program runs the progress model in the background while a run feeds it
// events from any goroutine.
type Program struct {
	tea       *tea.Program
	interrupt func()
	done      chan struct{}

	mu      sync.Mutex
	armed   bool
	running bool
	stopped bool
	err     error
}

func NewProgram(out io.Writer, opts ...tea.ProgramOption) *Program {
	p := &Program{done: make(chan struct{})}
	model := New(func() {
		if p.interrupt != nil {
			p.interrupt()
		}
	})
	p.tea = tea.NewProgram(model, append([]tea.ProgramOption{tea.WithOutput(out)}, opts...)...)
	return p
}

// Start arms the view; interrupt is called on the first ctrl+c. The terminal
// is only taken over when the first event arrives, so a password prompt that
// runs before any course starts still owns stdin.
func (p *Program) Start(interrupt func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interrupt = interrupt
	p.armed = true
}

// Running reports whether the view has taken over the terminal.
func (p *Program) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Program) Send(msg tea.Msg) {
	p.mu.Lock()
	if !p.armed || p.stopped {
		p.mu.Unlock()
		return
	}
	if !p.running {
		p.running = true
		go func() {
			_, err := p.tea.Run()
			p.err = err
			close(p.done)
		}()
	}
	p.mu.Unlock()
	p.tea.Send(msg)
}

// Stop quits the program and waits for the final frame.
func (p *Program) Stop() error {
	p.mu.Lock()
	p.stopped = true
	running := p.running
	p.mu.Unlock()
	if !running {
		return nil
	}
	p.tea.Send(DoneMsg{})
	<-p.done
	return p.err
}

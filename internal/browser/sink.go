package browser

import (
	"sync"

	"github.com/Sternrassler/photo-feed-client/pkg/decode"
	"github.com/Sternrassler/photo-feed-client/pkg/pagination"
	tea "github.com/charmbracelet/bubbletea"
)

// Sink adapts grid.View to a channel read by the Bubble Tea program.
//
// The engine calls Sink from its queue; the program drains it with Listen.
// Sends block while the buffer is full so no reload is ever lost.
type Sink struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewSink creates a sink with the given buffer size.
func NewSink(buffer int) *Sink {
	if buffer < 1 {
		buffer = 1
	}
	return &Sink{
		msgs: make(chan tea.Msg, buffer),
		done: make(chan struct{}),
	}
}

// Reload implements grid.View.
func (s *Sink) Reload(items []pagination.Item) {
	s.send(ItemsMsg{Items: items})
}

// RenderSlot implements grid.View.
func (s *Sink) RenderSlot(slot, index int, img *decode.Image) {
	s.send(SlotMsg{Slot: slot, Index: index, Image: img})
}

// ShowLoader implements grid.View.
func (s *Sink) ShowLoader(visible bool) {
	s.send(LoaderMsg{Visible: visible})
}

// Listen returns a command that reads one message from the sink.
func (s *Sink) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-s.msgs:
			return msg
		case <-s.done:
			return nil
		}
	}
}

// Close unblocks pending sends and listeners.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Sink) send(msg tea.Msg) {
	select {
	case s.msgs <- msg:
	case <-s.done:
	}
}

// Package browser is a terminal photo grid driven by the feed engine.
//
// Rows on screen are visual slots. Scrolling rebinds the same slots to new
// items, so image completions for items that scrolled away are dropped by the
// grid controller instead of being drawn into the wrong row.
package browser

import (
	"fmt"
	"image"
	"strings"

	"github.com/Sternrassler/photo-feed-client/pkg/decode"
	"github.com/Sternrassler/photo-feed-client/pkg/pagination"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Engine is the part of the feed client the browser drives.
type Engine interface {
	Start() bool
	Refresh() bool
	BindSlot(slot, index int) bool
	ItemWillDisplay(index int) bool
}

type slotState struct {
	index  int
	image  *decode.Image
	swatch lipgloss.Color
}

func emptySlots(n int) []slotState {
	slots := make([]slotState, n)
	for i := range slots {
		slots[i].index = -1
	}
	return slots
}

// Model is the Bubble Tea model of the browser.
type Model struct {
	engine Engine
	sink   *Sink
	rows   int

	items   []pagination.Item
	offset  int
	cursor  int
	slots   []slotState
	loading bool
	width   int
}

// NewModel creates a browser showing rows slots.
func NewModel(engine Engine, sink *Sink, rows int) Model {
	if rows < 1 {
		rows = 1
	}
	return Model{
		engine: engine,
		sink:   sink,
		rows:   rows,
		slots:  emptySlots(rows),
	}
}

// Init starts the first page load.
func (m Model) Init() tea.Cmd {
	m.engine.Start()
	return m.sink.Listen()
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ItemsMsg:
		m.items = msg.Items
		m.clamp()
		m.bindVisible()
		return m, m.sink.Listen()

	case SlotMsg:
		// Renders for an item the slot no longer shows are dropped.
		if msg.Slot >= 0 && msg.Slot < len(m.slots) && m.slots[msg.Slot].index == msg.Index {
			m.slots[msg.Slot].image = msg.Image
			m.slots[msg.Slot].swatch = swatch(msg.Image)
		}
		return m, m.sink.Listen()

	case LoaderMsg:
		m.loading = msg.Visible
		return m, m.sink.Listen()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		m.move(1)
	case "k", "up":
		m.move(-1)
	case "r":
		m.items = nil
		m.offset, m.cursor = 0, 0
		m.slots = emptySlots(m.rows)
		m.engine.Refresh()
	}
	return m, nil
}

func (m *Model) move(delta int) {
	if len(m.items) == 0 {
		m.engine.ItemWillDisplay(0)
		return
	}

	m.cursor += delta
	prevOffset := m.offset
	m.clamp()

	if m.offset != prevOffset {
		m.bindVisible()
		return
	}
	// Reaching the end again retries a failed page.
	if m.cursor == len(m.items)-1 {
		m.engine.ItemWillDisplay(m.cursor)
	}
}

func (m *Model) clamp() {
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.rows {
		m.offset = m.cursor - m.rows + 1
	}
}

// bindVisible rebinds every slot whose item changed.
func (m *Model) bindVisible() {
	for slot := 0; slot < m.rows; slot++ {
		index := m.offset + slot
		if index >= len(m.items) {
			m.slots[slot] = slotState{index: -1}
			continue
		}
		if m.slots[slot].index != index {
			m.slots[slot] = slotState{index: index}
			m.engine.BindSlot(slot, index)
		}
		m.engine.ItemWillDisplay(index)
	}
}

// View renders the browser.
func (m Model) View() string {
	var b strings.Builder

	header := TitleStyle.Render("Photo Feed") + "  " +
		SubtitleStyle.Render(fmt.Sprintf("%d photos", len(m.items)))
	if m.loading {
		header += "  " + AccentStyle.Render("loading…")
	}
	b.WriteString(HeaderStyle.Render(header))
	b.WriteString("\n")

	for slot := 0; slot < m.rows; slot++ {
		index := m.offset + slot
		if index >= len(m.items) {
			break
		}
		line := m.renderRow(slot, index)
		if index == m.cursor {
			line = SelectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.items) == 0 && !m.loading {
		b.WriteString(DimStyle.Render("No photos. Press r to reload."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(DimStyle.Render("j/k scroll • r refresh • q quit"))
	return b.String()
}

func (m Model) renderRow(slot, index int) string {
	item := m.items[index]
	state := m.slots[slot]

	mark := DimStyle.Render(PlaceholderChar)
	detail := DimStyle.Render("…")
	if state.image != nil {
		mark = SwatchChar
		if state.swatch != "" {
			mark = lipgloss.NewStyle().Foreground(state.swatch).Render(SwatchChar)
		}
		detail = describe(state.image)
	}

	return fmt.Sprintf("%5d %s %-24s %s", index+1, mark, truncate(item.ID, 24), detail)
}

func describe(img *decode.Image) string {
	return fmt.Sprintf("%s %dx%d %s", img.Format, img.Width, img.Height, humanBytes(img.Bytes))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// swatch returns the average color of a sampled grid of pixels, or "" when
// the image has no pixel data.
func swatch(img *decode.Image) lipgloss.Color {
	if img == nil || img.Pixels == nil {
		return ""
	}
	bounds := img.Pixels.Bounds()
	if bounds.Empty() {
		return ""
	}

	const samples = 16
	var r, g, bl, n uint64
	for sy := 0; sy < samples; sy++ {
		for sx := 0; sx < samples; sx++ {
			p := image.Pt(
				bounds.Min.X+sx*bounds.Dx()/samples,
				bounds.Min.Y+sy*bounds.Dy()/samples,
			)
			cr, cg, cb, _ := img.Pixels.At(p.X, p.Y).RGBA()
			r += uint64(cr >> 8)
			g += uint64(cg >> 8)
			bl += uint64(cb >> 8)
			n++
		}
	}
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r/n, g/n, bl/n))
}

package rotation

// InputKind enumerates everything that can move the cursor.
type InputKind int

const (
	InputTick   InputKind = iota + 1 // Timer fired
	InputNext                        // Wheel-down or "next" button
	InputPrev                        // Wheel-up or "previous" button
	InputSelect                      // Indicator click
	InputHover                       // Hover region entered/left
)

// String returns the string representation of InputKind
func (k InputKind) String() string {
	switch k {
	case InputTick:
		return "TICK"
	case InputNext:
		return "NEXT"
	case InputPrev:
		return "PREV"
	case InputSelect:
		return "SELECT"
	case InputHover:
		return "HOVER"
	default:
		return "UNKNOWN"
	}
}

// Input is one event fed into the machine.
type Input struct {
	Kind    InputKind
	Pointer bool // Originated from a pointer device (wheel); gated by hover
	Index   int  // For InputSelect
	Hovered bool // For InputHover
}

// Input constructors.
func Tick() Input { return Input{Kind: InputTick} }
func Next() Input { return Input{Kind: InputNext} }
func Prev() Input { return Input{Kind: InputPrev} }
func Select(j int) Input { return Input{Kind: InputSelect, Index: j} }
func Hover(on bool) Input { return Input{Kind: InputHover, Hovered: on} }
func WheelDown() Input { return Input{Kind: InputNext, Pointer: true} }
func WheelUp() Input { return Input{Kind: InputPrev, Pointer: true} }
// Wheel maps a vertical scroll delta. A zero delta (horizontal-only scroll) yields an input Apply ignores.
func Wheel(deltaY float64) Input {
	switch {
	case deltaY < 0:
		return WheelUp()
	case deltaY > 0:
		return WheelDown()
	default:
		return Input{Pointer: true}
	}
}

// Machine owns the featured cursor over the top tier.
// Not safe for concurrent use; the engine loop is its only caller.
type Machine struct {
	cursor  int
	size    int
	hovered bool
}

// NewMachine creates a machine over n featured items. The cursor starts at 0.
func NewMachine(n int) *Machine {
	m := &Machine{}
	m.Resize(n)
	return m
}

// Apply is the single transition function. It returns the cursor after the input.
func (m *Machine) Apply(in Input) int {
	if in.Kind == InputHover {
		m.hovered = in.Hovered
		return m.cursor
	}
	if m.size == 0 {
		return m.cursor
	}
	if in.Pointer && !m.hovered {
		return m.cursor
	}

	switch in.Kind {
	case InputTick, InputNext:
		m.cursor = (m.cursor + 1) % m.size
	case InputPrev:
		m.cursor = (m.cursor - 1 + m.size) % m.size
	case InputSelect:
		m.cursor = clamp(in.Index, m.size)
	}
	return m.cursor
}

// Resize re-derives N from the top tier and clamps the cursor into range.
func (m *Machine) Resize(n int) {
	if n < 0 {
		n = 0
	}
	m.size = n
	m.cursor = clamp(m.cursor, n)
}

// Current returns the cursor. ok is false when the machine is inert (N = 0).
func (m *Machine) Current() (idx int, ok bool) {
	if m.size == 0 {
		return 0, false
	}
	return m.cursor, true
}

// Size returns N.
func (m *Machine) Size() int { return m.size }

// Hovered reports the pointer gate.
func (m *Machine) Hovered() bool { return m.hovered }

func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

package console

// LogBuffer is the ordered, append-only record of lines received on the log
// channel. It is never truncated; only a new LogBuffer starts empty.
type LogBuffer struct {
	lines []string
}

// Append adds line after every line received so far.
func (b *LogBuffer) Append(line string) {
	b.lines = append(b.lines, line)
}

// Len returns the number of buffered lines.
func (b *LogBuffer) Len() int { return len(b.lines) }

// Lines returns a copy of every line in arrival order.
func (b *LogBuffer) Lines() []string {
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Window returns up to n lines ending offset lines before the newest one.
// Offsets past the oldest line are clamped.
func (b *LogBuffer) Window(n, offset int) []string {
	if n <= 0 || len(b.lines) == 0 {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	end := len(b.lines) - offset
	if end < n {
		end = min(n, len(b.lines))
	}
	start := max(end-n, 0)
	out := make([]string, end-start)
	copy(out, b.lines[start:end])
	return out
}

// Tail returns the newest n lines.
func (b *LogBuffer) Tail(n int) []string {
	return b.Window(n, 0)
}

package event

import "time"

// ConsoleSource publishes timestamped console lines of a fixed type.
// The plugin and chat consoles each hold one.
type ConsoleSource struct {
	bus *Bus
	typ Type
}

// NewConsoleSource creates a source publishing typ events on bus.
func NewConsoleSource(bus *Bus, typ Type) *ConsoleSource {
	return &ConsoleSource{bus: bus, typ: typ}
}

// Write publishes one console line stamped with the current time.
func (c *ConsoleSource) Write(text string) {
	c.WriteAt(time.Now().UTC(), text)
}

// WriteAt publishes one console line with an explicit timestamp.
func (c *ConsoleSource) WriteAt(at time.Time, text string) {
	c.bus.Publish(Event{Type: c.typ, Payload: Console{At: at, Text: text}})
}

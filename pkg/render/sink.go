package render

// Sink consumes render commands. Apply is called from the controller's event
// loop and must not block for long.
type Sink interface {
	Apply(cmd Command)
}

type SinkFunc func(cmd Command)

func (f SinkFunc) Apply(cmd Command) {
	if f != nil {
		f(cmd)
	}
}

// MultiSink fans a command out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Apply(cmd Command) {
	for _, s := range m {
		if s != nil {
			s.Apply(cmd)
		}
	}
}

// Discard drops every command.
var Discard Sink = SinkFunc(func(Command) {})

// Recorder keeps every command it receives. Useful in tests and for replay.
type Recorder struct {
	Commands []Command
}

func (r *Recorder) Apply(cmd Command) {
	r.Commands = append(r.Commands, cmd)
}

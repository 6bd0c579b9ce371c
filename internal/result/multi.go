package result

import "context"

// MultiSink appends each record to every sink in order. The first failure
// stops the fan-out; earlier sinks keep what they already wrote.
type MultiSink []Sink

// Multi drops nil sinks and returns the rest as one Sink.
func Multi(sinks ...Sink) MultiSink {
	var out MultiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m MultiSink) Append(ctx context.Context, rec Record) error {
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// EnsureInitialized initializes every sink that needs it.
func (m MultiSink) EnsureInitialized() error {
	for _, s := range m {
		if in, ok := s.(Initializer); ok {
			if err := in.EnsureInitialized(); err != nil {
				return err
			}
		}
	}
	return nil
}

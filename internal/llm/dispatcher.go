package llm

import (
	"context"

	"go.uber.org/zap"
)

// FailoverPolicy controls when the dispatcher may retry a request on the next
// backend in priority order. Auto-routed requests always fail over on
// transient errors.
type FailoverPolicy struct {
	// OnlyInAuto restricts failover to requests without an explicit backend
	// hint. When false, a request that names its backend still falls through
	// to the remaining backends if the named one fails transiently.
	OnlyInAuto bool
}

// DefaultFailoverPolicy fails over only for auto-routed requests.
func DefaultFailoverPolicy() FailoverPolicy {
	return FailoverPolicy{OnlyInAuto: true}
}

// Status describes one backend for health reporting.
type Status struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Dispatcher routes chat requests to backends. Backends are tried in the
// order given; the first is the primary.
type Dispatcher struct {
	backends []Backend
	policy   FailoverPolicy
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher over backends in priority order.
func NewDispatcher(logger *zap.Logger, policy FailoverPolicy, backends ...Backend) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{backends: backends, policy: policy, logger: logger}
}

// Backends returns the configured backends in priority order.
func (d *Dispatcher) Backends() []Backend {
	return d.backends
}

// Dispatch routes one generation request. hint selects a backend by name;
// empty or "auto" lets the dispatcher choose, failing over on transient
// errors when the policy allows.
func (d *Dispatcher) Dispatch(ctx context.Context, hint string, messages []Message, opts Options) (Reply, error) {
	if hint != "" && hint != "auto" {
		return d.dispatchExplicit(ctx, hint, messages, opts)
	}
	return d.dispatchAuto(ctx, messages, opts)
}

func (d *Dispatcher) dispatchExplicit(ctx context.Context, hint string, messages []Message, opts Options) (Reply, error) {
	b := d.byName(hint)
	if b == nil {
		return Reply{}, &NoBackendError{Reasons: map[string]string{hint: "unknown backend"}}
	}

	reasons := make(map[string]string)
	if err := b.Available(ctx); err != nil {
		if d.policy.OnlyInAuto {
			return Reply{}, &NoBackendError{Reasons: map[string]string{hint: err.Error()}}
		}
		reasons[hint] = err.Error()
	} else {
		reply, err := b.Chat(ctx, messages, opts)
		if err == nil {
			return reply, nil
		}
		if d.policy.OnlyInAuto || !IsTransient(err) {
			// The caller asked for this backend; it gets that backend's error
			return Reply{}, err
		}
		reasons[hint] = err.Error()
	}

	d.logger.Warn("hinted backend failed, falling back", zap.String("backend", hint))
	return d.tryEach(ctx, hint, messages, opts, reasons)
}

func (d *Dispatcher) dispatchAuto(ctx context.Context, messages []Message, opts Options) (Reply, error) {
	return d.tryEach(ctx, "", messages, opts, make(map[string]string))
}

// tryEach walks the backends in priority order, skipping the named one, and
// fails over on transient errors. reasons accumulates per-backend failures.
func (d *Dispatcher) tryEach(ctx context.Context, skip string, messages []Message, opts Options, reasons map[string]string) (Reply, error) {
	for _, b := range d.backends {
		if b.Name() == skip {
			continue
		}
		if err := b.Available(ctx); err != nil {
			reasons[b.Name()] = err.Error()
			d.logger.Debug("backend unavailable", zap.String("backend", b.Name()), zap.Error(err))
			continue
		}

		reply, err := b.Chat(ctx, messages, opts)
		if err == nil {
			return reply, nil
		}

		if IsTransient(err) {
			reasons[b.Name()] = err.Error()
			d.logger.Warn("backend failed, trying next",
				zap.String("backend", b.Name()), zap.Error(err))
			continue
		}
		return Reply{}, err
	}

	return Reply{}, &NoBackendError{Reasons: reasons}
}

// DispatchStream is the streaming counterpart of Dispatch. Failover applies
// only before the first event is produced; once a stream starts, its errors
// surface to the caller.
func (d *Dispatcher) DispatchStream(ctx context.Context, hint string, messages []Message, opts Options) (<-chan StreamEvent, string, error) {
	if hint != "" && hint != "auto" {
		b := d.byName(hint)
		if b == nil {
			return nil, "", &NoBackendError{Reasons: map[string]string{hint: "unknown backend"}}
		}
		reasons := make(map[string]string)
		if err := b.Available(ctx); err != nil {
			if d.policy.OnlyInAuto {
				return nil, "", &NoBackendError{Reasons: map[string]string{hint: err.Error()}}
			}
			reasons[hint] = err.Error()
		} else {
			ch, err := b.ChatStream(ctx, messages, opts)
			if err == nil {
				return ch, b.Name(), nil
			}
			if d.policy.OnlyInAuto || !IsTransient(err) {
				return nil, "", err
			}
			reasons[hint] = err.Error()
		}
		return d.streamEach(ctx, hint, messages, opts, reasons)
	}

	return d.streamEach(ctx, "", messages, opts, make(map[string]string))
}

func (d *Dispatcher) streamEach(ctx context.Context, skip string, messages []Message, opts Options, reasons map[string]string) (<-chan StreamEvent, string, error) {
	for _, b := range d.backends {
		if b.Name() == skip {
			continue
		}
		if err := b.Available(ctx); err != nil {
			reasons[b.Name()] = err.Error()
			continue
		}
		ch, err := b.ChatStream(ctx, messages, opts)
		if err == nil {
			return ch, b.Name(), nil
		}
		if IsTransient(err) {
			reasons[b.Name()] = err.Error()
			d.logger.Warn("backend stream failed, trying next",
				zap.String("backend", b.Name()), zap.Error(err))
			continue
		}
		return nil, "", err
	}
	return nil, "", &NoBackendError{Reasons: reasons}
}

// Statuses probes every backend.
func (d *Dispatcher) Statuses(ctx context.Context) []Status {
	out := make([]Status, 0, len(d.backends))
	for _, b := range d.backends {
		s := Status{Name: b.Name(), Model: b.Model(), Available: true}
		if err := b.Available(ctx); err != nil {
			s.Available = false
			s.Reason = err.Error()
		}
		out = append(out, s)
	}
	return out
}

func (d *Dispatcher) byName(name string) Backend {
	for _, b := range d.backends {
		if b.Name() == name {
			return b
		}
	}
	return nil
}

// Names lists configured backend names, primary first.
func (d *Dispatcher) Names() []string {
	out := make([]string, 0, len(d.backends))
	for _, b := range d.backends {
		out = append(out, b.Name())
	}
	return out
}

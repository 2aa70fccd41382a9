package station

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quartzlab/stationctl/internal/observability"
	"github.com/quartzlab/stationctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Exception kinds carried in error envelopes. Clients treat these as plain
// data; the kind names the failure category, the detail says what happened.
const (
	ExcUnknownOperation  = "UnknownOperation"
	ExcUnknownInstrument = "UnknownInstrument"
	ExcInstrumentExists  = "InstrumentExists"
	ExcUnknownMethod     = "UnknownMethod"
	ExcUnknownParameter  = "UnknownParameter"
	ExcParameterExists   = "ParameterExists"
	ExcUnknownKind       = "UnknownKind"
	ExcInvalidSpec       = "InvalidSpec"
	ExcInvalidName       = "InvalidName"
	ExcStationError      = "StationError"
)

// Dispatcher resolves one decoded request into one response envelope.
// Failures never close the connection: they travel back as error envelopes
// and the serve loop keeps reading.
type Dispatcher struct {
	station   string
	registry  *Registry
	factories map[string]Factory
}

// NewDispatcher builds a dispatcher over registry with the built-in
// instrument factories installed.
func NewDispatcher(station string, registry *Registry) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{
		station:  station,
		registry: registry,
		factories: map[string]Factory{
			KindParameterStore: NewParameterStoreFromParams,
			KindSource:         NewSource,
		},
	}
}

// RegisterFactory adds or replaces the create_instrument factory for kind.
// Not safe to call once the server is accepting connections.
func (d *Dispatcher) RegisterFactory(kind string, factory Factory) {
	d.factories[kind] = factory
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Handle resolves req into its reply envelope and records the outcome.
func (d *Dispatcher) Handle(req protocol.Request) protocol.Response {
	start := time.Now()
	resp := d.dispatch(req)

	op := req.Operation
	if op == "" {
		op = "message"
	}
	status := "ok"
	switch {
	case resp.Error == nil:
	case resp.Error.Kind == protocol.ErrorWarning:
		status = "warning"
		log.Warn().
			Str("station", d.station).
			Str("operation", op).
			Str("warning", resp.Error.Warning).
			Msg("station request completed with warning")
	default:
		status = "error"
		evt := log.Error().
			Str("station", d.station).
			Str("operation", op)
		if resp.Error.Exception != nil {
			evt = evt.
				Str("exception", resp.Error.Exception.Kind).
				Str("detail", resp.Error.Exception.Detail)
		}
		evt.Msg("station request failed")
	}
	observability.RecordStationRequest(d.station, op, status, time.Since(start))
	return resp
}

func (d *Dispatcher) dispatch(req protocol.Request) protocol.Response {
	switch req.Operation {
	case "":
		return protocol.Response{Message: echoReply(req.Message)}
	case protocol.OpListInstruments:
		return protocol.Response{Message: d.registry.List()}
	case protocol.OpCreateInstrument:
		return d.createInstrument(req.Message)
	case protocol.OpCall:
		return d.call(req.Message)
	case protocol.OpGetParams:
		return d.getParams(req.Message)
	case protocol.OpSetParams:
		return d.setParams(req.Message)
	default:
		return protocol.Response{Error: protocol.ExceptionError(
			ExcUnknownOperation,
			fmt.Sprintf("operation %q is not supported", req.Operation),
		)}
	}
}

// echoReply answers a bare message request. The literal "ping" gets "pong";
// everything else gets the acknowledgement line.
func echoReply(message any) any {
	if s, ok := message.(string); ok && s == "ping" {
		return "pong"
	}
	return fmt.Sprintf("Server has received: %v. No further action.", message)
}

func (d *Dispatcher) createInstrument(message any) protocol.Response {
	var spec protocol.CreateSpec
	if err := protocol.DecodeInto(message, &spec); err != nil {
		return exceptionResponse(err)
	}
	if err := spec.Validate(); err != nil {
		return exceptionResponse(err)
	}
	factory, ok := d.factories[spec.Kind]
	if !ok {
		return exceptionResponse(fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind))
	}
	inst, err := factory(spec.Name, spec.Params)
	if err != nil {
		return exceptionResponse(err)
	}
	if err := d.registry.Register(inst); err != nil {
		return exceptionResponse(err)
	}
	return protocol.Response{Message: map[string]any{
		"name": inst.Name(),
		"kind": inst.Kind(),
	}}
}

func (d *Dispatcher) call(message any) protocol.Response {
	var spec protocol.CallSpec
	if err := protocol.DecodeInto(message, &spec); err != nil {
		return exceptionResponse(err)
	}
	if err := spec.Validate(); err != nil {
		return exceptionResponse(err)
	}
	inst, ok := d.registry.Resolve(spec.Instrument)
	if !ok {
		return exceptionResponse(fmt.Errorf("%w: %q", ErrInstrumentUnknown, spec.Instrument))
	}
	result, err := inst.Call(spec.Method, spec.Args)
	if err != nil {
		var warn *Warning
		if errors.As(err, &warn) {
			return protocol.Response{Message: result, Error: protocol.WarningError(warn.Msg)}
		}
		return exceptionResponse(err)
	}
	return protocol.Response{Message: result}
}

func (d *Dispatcher) getParams(message any) protocol.Response {
	var spec protocol.ParamsSpec
	if err := protocol.DecodeInto(message, &spec); err != nil {
		return exceptionResponse(err)
	}
	if err := spec.Validate(); err != nil {
		return exceptionResponse(err)
	}
	inst, ok := d.registry.Resolve(spec.Instrument)
	if !ok {
		return exceptionResponse(fmt.Errorf("%w: %q", ErrInstrumentUnknown, spec.Instrument))
	}
	return protocol.Response{Message: inst.Params()}
}

// setParams applies values in sorted name order so outcomes are
// deterministic. The first hard failure aborts; warnings accumulate and ride
// back together.
func (d *Dispatcher) setParams(message any) protocol.Response {
	var spec protocol.ParamsSpec
	if err := protocol.DecodeInto(message, &spec); err != nil {
		return exceptionResponse(err)
	}
	if err := spec.Validate(); err != nil {
		return exceptionResponse(err)
	}
	inst, ok := d.registry.Resolve(spec.Instrument)
	if !ok {
		return exceptionResponse(fmt.Errorf("%w: %q", ErrInstrumentUnknown, spec.Instrument))
	}

	names := make([]string, 0, len(spec.Values))
	for name := range spec.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	var warnings []string
	for _, name := range names {
		if err := inst.SetParam(name, spec.Values[name]); err != nil {
			var warn *Warning
			if errors.As(err, &warn) {
				warnings = append(warnings, warn.Msg)
				continue
			}
			return exceptionResponse(err)
		}
	}
	resp := protocol.Response{}
	if len(warnings) > 0 {
		resp.Error = protocol.WarningError(strings.Join(warnings, "; "))
	}
	return resp
}

func exceptionResponse(err error) protocol.Response {
	return protocol.Response{Error: protocol.ExceptionError(exceptionKind(err), err.Error())}
}

// exceptionKind maps dispatch failures onto the wire exception taxonomy.
func exceptionKind(err error) string {
	switch {
	case errors.Is(err, ErrInstrumentUnknown):
		return ExcUnknownInstrument
	case errors.Is(err, ErrInstrumentExists):
		return ExcInstrumentExists
	case errors.Is(err, ErrUnknownMethod):
		return ExcUnknownMethod
	case errors.Is(err, ErrParamUnknown):
		return ExcUnknownParameter
	case errors.Is(err, ErrParamExists):
		return ExcParameterExists
	case errors.Is(err, ErrUnknownKind):
		return ExcUnknownKind
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrParamName):
		return ExcInvalidName
	case errors.Is(err, protocol.ErrInvalidEnvelope), errors.Is(err, protocol.ErrMalformedPayload):
		return ExcInvalidSpec
	default:
		return ExcStationError
	}
}

package core

import (
	"encoding/json"
	"fmt"
)

// ActuationResultKind tags an ActuationResult variant.
type ActuationResultKind string

const (
	ResultSuccess       ActuationResultKind = "success"
	ResultIgnored       ActuationResultKind = "ignored"
	ResultNoResponse    ActuationResultKind = "no_response"
	ResultBadRequest    ActuationResultKind = "bad_request"
	ResultActuatorError ActuationResultKind = "actuator_error"
)

// ActuationResult is the outcome of one actuation attempt.
type ActuationResult struct {
	kind   ActuationResultKind
	reason string
	code   int64
	desc   string
}

func Success() ActuationResult { return ActuationResult{kind: ResultSuccess} }
func Ignored() ActuationResult { return ActuationResult{kind: ResultIgnored} }
func NoResponse() ActuationResult { return ActuationResult{kind: ResultNoResponse} }

func BadRequest(reason string) ActuationResult {
	return ActuationResult{kind: ResultBadRequest, reason: reason}
}

func ActuatorError(code int64, description string) ActuationResult {
	return ActuationResult{kind: ResultActuatorError, code: code, desc: description}
}

func (r ActuationResult) Kind() ActuationResultKind { return r.kind }
func (r ActuationResult) Reason() string            { return r.reason }
func (r ActuationResult) Code() int64               { return r.code }
func (r ActuationResult) Description() string       { return r.desc }

type actuationResultWire struct {
	Result      ActuationResultKind `json:"result"`
	Reason      string              `json:"reason,omitempty"`
	ErrorCode   *int64              `json:"error_code,omitempty"`
	Description string              `json:"error_description,omitempty"`
}

func (r ActuationResult) MarshalJSON() ([]byte, error) {
	w := actuationResultWire{Result: r.kind}
	switch r.kind {
	case ResultBadRequest:
		w.Reason = r.reason
	case ResultActuatorError:
		code := r.code
		w.ErrorCode = &code
		w.Description = r.desc
	}
	return json.Marshal(w)
}

func (r *ActuationResult) UnmarshalJSON(data []byte) error {
	var w actuationResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Result {
	case ResultSuccess:
		*r = Success()
	case ResultIgnored:
		*r = Ignored()
	case ResultNoResponse:
		*r = NoResponse()
	case ResultBadRequest:
		*r = BadRequest(w.Reason)
	case ResultActuatorError:
		code := int64(0)
		if w.ErrorCode != nil {
			code = *w.ErrorCode
		}
		*r = ActuatorError(code, w.Description)
	default:
		return fmt.Errorf("actuation result: unknown kind %q", w.Result)
	}
	return nil
}

// RemoteActuationResponse is the flat, gob-friendly wire twin of
// ActuationResult exchanged over the actuator request/response protocol
// (§9). Keeping it separate from the JSON tagged union used at the web
// boundary mirrors the original's two parallel result representations:
// one for the mesh wire, one for the HTTP/JSON surface.
type RemoteActuationResponse struct {
	Status      string
	Reason      string
	ErrorCode   int64
	Description string
}

// ToRemote is the lossless half of the bijection required by §9's
// testable property: every ActuationResult round-trips through the wire
// form without information loss.
func (r ActuationResult) ToRemote() RemoteActuationResponse {
	return RemoteActuationResponse{
		Status:      string(r.kind),
		Reason:      r.reason,
		ErrorCode:   r.code,
		Description: r.desc,
	}
}

// ToResult is the other half of the bijection.
func (w RemoteActuationResponse) ToResult() ActuationResult {
	switch ActuationResultKind(w.Status) {
	case ResultSuccess:
		return Success()
	case ResultIgnored:
		return Ignored()
	case ResultNoResponse:
		return NoResponse()
	case ResultBadRequest:
		return BadRequest(w.Reason)
	case ResultActuatorError:
		return ActuatorError(w.ErrorCode, w.Description)
	default:
		return ActuatorError(-500, fmt.Sprintf("unrecognized remote result status %q", w.Status))
	}
}

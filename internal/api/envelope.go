package api

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"yojana/internal/core"
	"yojana/pkg/domain"
)

// Error kinds reported in the envelope.
const (
	KindNotFound      = "notFound"
	KindBadRequest    = "badRequest"
	KindConflict      = "conflict"
	KindForbidden     = "forbidden"
	KindUnauthorized  = "unauthorized"
	KindUnavailable   = "unavailable"
	KindInternal      = "internal"
	KindRuleViolation = "ruleViolation"
)

// ErrorMessage is one structured entry of the envelope's errors list.
type ErrorMessage struct {
	Status   int    `json:"status" xml:"status"`
	Kind     string `json:"kind" xml:"kind"`
	Resource string `json:"resource,omitempty" xml:"resource,omitempty"`
	ID       string `json:"id,omitempty" xml:"id,omitempty"`
	Detail   string `json:"detail,omitempty" xml:"detail,omitempty"`
	Message  string `json:"message" xml:"message"`
}

// Envelope wraps every JSON response: named data slots plus errors.
type Envelope struct {
	Data   map[string]any `json:"data"`
	Errors []ErrorMessage `json:"errors"`
}

type xmlErrorEnvelope struct {
	XMLName xml.Name       `xml:"response"`
	Errors  []ErrorMessage `xml:"errors>error"`
}

func newEnvelope() *Envelope {
	return &Envelope{Data: map[string]any{}, Errors: []ErrorMessage{}}
}

func notFoundSingle(resource, id string) ErrorMessage {
	return ErrorMessage{
		Status:   http.StatusNotFound,
		Kind:     KindNotFound,
		Resource: resource,
		ID:       id,
		Message:  fmt.Sprintf("%s with id %s not found", resource, id),
	}
}

func notFoundMultiple(resource string) ErrorMessage {
	return ErrorMessage{
		Status:   http.StatusNotFound,
		Kind:     KindNotFound,
		Resource: resource,
		Message:  fmt.Sprintf("no %s found", resource),
	}
}

func badRequest(detail, message string) ErrorMessage {
	return ErrorMessage{Status: http.StatusBadRequest, Kind: KindBadRequest, Detail: detail, Message: message}
}

// errorMessage maps a service error onto its envelope entry. The boolean is
// false for unexpected failures, whose raw message is not exposed.
func errorMessage(err error) (ErrorMessage, bool) {
	var (
		nf       domain.ErrNotFound
		conflict domain.ErrConflict
		invalid  domain.ErrInvalid
		blocked  domain.RuleViolationError
	)
	switch {
	case errors.As(err, &nf):
		return notFoundSingle(string(nf.Entity), nf.ID), true
	case errors.As(err, &conflict):
		return ErrorMessage{
			Status:   http.StatusConflict,
			Kind:     KindConflict,
			Resource: string(conflict.Entity),
			ID:       conflict.Value,
			Detail:   conflict.Field,
			Message:  conflict.Error(),
		}, true
	case errors.As(err, &invalid):
		return badRequest(invalid.Field, invalid.Error()), true
	case errors.As(err, &blocked):
		messages := make([]string, 0, len(blocked.Result.Violations))
		var resource, id string
		for _, v := range blocked.Result.Violations {
			if v.Severity != domain.SeverityBlock {
				continue
			}
			messages = append(messages, v.Message)
			resource, id = string(v.Entity), v.EntityID
		}
		return ErrorMessage{
			Status:   http.StatusBadRequest,
			Kind:     KindRuleViolation,
			Resource: resource,
			ID:       id,
			Message:  strings.Join(messages, "; "),
		}, true
	case errors.Is(err, domain.ErrForbidden):
		return ErrorMessage{Status: http.StatusForbidden, Kind: KindForbidden, Message: "insufficient permissions"}, true
	case errors.Is(err, domain.ErrUnauthenticated):
		return ErrorMessage{Status: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "authentication required"}, true
	case errors.Is(err, core.ErrSignatureStorageDisabled):
		return ErrorMessage{Status: http.StatusServiceUnavailable, Kind: KindUnavailable, Resource: string(domain.EntitySignature), Message: err.Error()}, true
	}
	return ErrorMessage{Status: http.StatusInternalServerError, Kind: KindInternal, Message: "internal error"}, false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeXML(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(payload)
}

// writeMessages writes an error-only envelope with the status of the first
// message, in XML when asXML is set.
func writeMessages(w http.ResponseWriter, asXML bool, messages ...ErrorMessage) {
	status := http.StatusInternalServerError
	if len(messages) > 0 {
		status = messages[0].Status
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="yojana"`)
	}
	if asXML {
		writeXML(w, status, xmlErrorEnvelope{Errors: messages})
		return
	}
	env := newEnvelope()
	env.Errors = append(env.Errors, messages...)
	writeJSON(w, status, env)
}

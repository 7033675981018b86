package client

import (
	"fmt"
	"strings"

	"github.com/clbanning/mxj"
)

func init() {
	// Decoded attribute keys carry the "@" marker the normalizer strips.
	mxj.SetAttrPrefix("@")
}

// decodeResponse parses a SOAP response body and returns the operation
// result mapping, navigating Envelope -> Body -> <Service>Response ->
// <Service>Result regardless of namespace prefixes. An absent or empty
// result decodes to an empty map. With cast disabled every scalar stays a
// string; with cast enabled numeric and boolean text decodes to typed
// values.
func decodeResponse(service string, body []byte, cast bool) (map[string]any, error) {
	parsed, err := mxj.NewMapXml(body, cast)
	if err != nil {
		return nil, fmt.Errorf("parse response XML: %w", err)
	}

	envelope, ok := childMap(map[string]any(parsed), "Envelope")
	if !ok {
		return nil, fmt.Errorf("response has no SOAP envelope")
	}
	bodyEl, ok := childMap(envelope, "Body")
	if !ok {
		return nil, fmt.Errorf("response has no SOAP body")
	}

	if fault, ok := childMap(bodyEl, "Fault"); ok {
		return nil, faultError(service, fault)
	}

	resp, ok := childMap(bodyEl, service+"Response")
	if !ok {
		return nil, fmt.Errorf("response has no %sResponse element", service)
	}

	result, ok := childValue(resp, service+"Result")
	if !ok {
		return map[string]any{}, nil
	}
	switch r := result.(type) {
	case map[string]any:
		return r, nil
	case nil:
		return map[string]any{}, nil
	case string:
		if strings.TrimSpace(r) == "" {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%sResult is not a mapping", service)
	default:
		return nil, fmt.Errorf("%sResult is not a mapping", service)
	}
}

// parseFault extracts a SOAP fault from a response body, typically one
// delivered with a 500 status. Returns nil when the body carries no
// parseable fault.
func parseFault(service string, body []byte) *ServiceError {
	parsed, err := mxj.NewMapXml(body)
	if err != nil {
		return nil
	}
	envelope, ok := childMap(map[string]any(parsed), "Envelope")
	if !ok {
		return nil
	}
	bodyEl, ok := childMap(envelope, "Body")
	if !ok {
		return nil
	}
	fault, ok := childMap(bodyEl, "Fault")
	if !ok {
		return nil
	}
	return faultError(service, fault)
}

// faultError converts a decoded SOAP fault into a ServiceError. Faults
// about credentials classify as auth, everything else as fatal.
func faultError(service string, fault map[string]any) *ServiceError {
	reason := faultReason(fault)

	class := ErrorClassFatal
	if isAuthFault(reason) {
		class = ErrorClassAuth
	}

	return &ServiceError{
		Service: service,
		Class:   class,
		Message: reason,
	}
}

// faultReason pulls a human-readable message out of a fault, handling both
// the SOAP 1.2 shape (Reason/Text) and the SOAP 1.1 shape (faultstring).
func faultReason(fault map[string]any) string {
	if reason, ok := childMap(fault, "Reason"); ok {
		if text, ok := childValue(reason, "Text"); ok {
			if s := textContent(text); s != "" {
				return s
			}
		}
	}
	if text, ok := childValue(fault, "faultstring"); ok {
		if s := textContent(text); s != "" {
			return s
		}
	}
	return "unknown SOAP fault"
}

// isAuthFault reports whether a fault reason describes a credential
// problem. The service returns these as faults rather than 401s.
func isAuthFault(reason string) bool {
	lower := strings.ToLower(reason)
	for _, marker := range []string{"security", "unauthorized", "authentication", "access denied"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// textContent returns the scalar text of a decoded element. Elements with
// attributes decode to a map holding the text under "#text".
func textContent(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if inner, ok := t["#text"]; ok {
			return textContent(inner)
		}
		return ""
	default:
		return ""
	}
}

// childMap returns the child element with the given local name when it
// decoded as a mapping.
func childMap(m map[string]any, local string) (map[string]any, bool) {
	v, ok := childValue(m, local)
	if !ok {
		return nil, false
	}
	child, ok := v.(map[string]any)
	return child, ok
}

// childValue looks up a child element by local name, tolerating namespace
// prefixes: "soap:Body" matches "Body". An exact match wins over a
// prefixed one.
func childValue(m map[string]any, local string) (any, bool) {
	if v, ok := m[local]; ok {
		return v, true
	}
	for k, v := range m {
		if idx := strings.LastIndex(k, ":"); idx >= 0 && k[idx+1:] == local {
			return v, true
		}
	}
	return nil, false
}

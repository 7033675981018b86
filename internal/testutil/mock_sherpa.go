// Package testutil provides testing utilities for the Sherpa replicator.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

const soapContentType = "application/soap+xml; charset=utf-8"

var (
	tokenPattern = regexp.MustCompile(`<tns:token>(-?\d+)</tns:token>`)
	keyPattern   = regexp.MustCompile(`<tns:(?:supplierCode|purchaseNumber)>([^<]*)</`)
)

// Call records one decoded service request.
type Call struct {
	Service string
	Token   int64
	Key     string
	Body    string
}

// MockSherpa is a configurable mock Sherpa SOAP server. Responses are
// scripted per service: paginated services by request token, detail
// services by lookup key. Unscripted requests get an empty result, which
// a replication run reads as exhaustion.
type MockSherpa struct {
	server *httptest.Server

	mu       sync.Mutex
	calls    []Call
	pages    map[string]map[int64]string
	details  map[string]map[string]string
	failures map[string]int
	handlers map[string]http.HandlerFunc
}

// NewMockSherpa creates a new mock Sherpa server.
func NewMockSherpa() *MockSherpa {
	mock := &MockSherpa{
		pages:    make(map[string]map[int64]string),
		details:  make(map[string]map[string]string),
		failures: make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL, suitable as a client BaseURL.
func (m *MockSherpa) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSherpa) Close() {
	m.server.Close()
}

// Reset clears all scripted responses and tracking.
func (m *MockSherpa) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.pages = make(map[string]map[int64]string)
	m.details = make(map[string]map[string]string)
	m.failures = make(map[string]int)
	m.handlers = make(map[string]http.HandlerFunc)
}

// AddPage scripts the result served when service is called with token.
// The result is the inner XML of the service's Result element.
func (m *MockSherpa) AddPage(service string, token int64, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pages[service] == nil {
		m.pages[service] = make(map[int64]string)
	}
	m.pages[service][token] = result
}

// SetDetail scripts the result served when service is called with key.
func (m *MockSherpa) SetDetail(service, key, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.details[service] == nil {
		m.details[service] = make(map[string]string)
	}
	m.details[service][key] = result
}

// FailNext makes the next n calls to service answer 500 with a server
// fault before scripted responses resume.
func (m *MockSherpa) FailNext(service string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[service] = n
}

// SetHandler overrides the response for one service entirely.
func (m *MockSherpa) SetHandler(service string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[service] = handler
}

// Calls returns every decoded request in arrival order.
func (m *MockSherpa) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls made to service.
func (m *MockSherpa) CallCount(service string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Service == service {
			n++
		}
	}
	return n
}

func (m *MockSherpa) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	call := Call{
		Service: serviceFromAction(r.Header.Get("SOAPAction")),
		Token:   parseRequestToken(body),
		Key:     parseRequestKey(body),
		Body:    string(body),
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	failing := m.failures[call.Service] > 0
	if failing {
		m.failures[call.Service]--
	}
	handler := m.handlers[call.Service]
	result, scripted := "", false
	if byKey, ok := m.details[call.Service]; ok {
		result, scripted = byKey[call.Key], true
	} else if byToken, ok := m.pages[call.Service]; ok {
		result, scripted = byToken[call.Token], true
	}
	m.mu.Unlock()

	if failing {
		w.Header().Set("Content-Type", soapContentType)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(ServerFault()))
		return
	}
	if handler != nil {
		handler(w, r)
		return
	}

	if !scripted || result == "" {
		result = EmptyResult()
	}
	w.Header().Set("Content-Type", soapContentType)
	w.Write([]byte(ResponseEnvelope(call.Service, result)))
}

func serviceFromAction(action string) string {
	action = strings.Trim(action, `"`)
	if idx := strings.LastIndex(action, "/"); idx >= 0 {
		return action[idx+1:]
	}
	return action
}

func parseRequestToken(body []byte) int64 {
	match := tokenPattern.FindSubmatch(body)
	if match == nil {
		return 0
	}
	token, err := strconv.ParseInt(string(match[1]), 10, 64)
	if err != nil {
		return 0
	}
	return token
}

func parseRequestKey(body []byte) string {
	match := keyPattern.FindSubmatch(body)
	if match == nil {
		return ""
	}
	return string(match[1])
}

// ResponseEnvelope wraps a result body in the service's response envelope.
func ResponseEnvelope(service, result string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<` + service + `Response xmlns="http://sherpa.sherpaan.nl/">` +
		`<` + service + `Result>` + result + `</` + service + `Result>` +
		`</` + service + `Response></soap:Body></soap:Envelope>`
}

// EmptyResult returns a result with no items.
func EmptyResult() string {
	return `<ResponseValue /><ResponseTime>1</ResponseTime>`
}

// StockPage renders a ChangedStock result holding one item per token.
func StockPage(responseTime int, tokens ...int64) string {
	var b strings.Builder
	b.WriteString("<ResponseValue>")
	for _, tok := range tokens {
		fmt.Fprintf(&b,
			"<ItemStockToken><ItemCode>SKU-%d</ItemCode><Stock>%d</Stock><Token>%d</Token></ItemStockToken>",
			tok, tok*10, tok)
	}
	b.WriteString("</ResponseValue>")
	fmt.Fprintf(&b, "<ResponseTime>%d</ResponseTime>", responseTime)
	return b.String()
}

// SupplierItem is one entry of a SupplierPage.
type SupplierItem struct {
	Token      int64
	ClientCode string
}

// SupplierPage renders a ChangedSuppliers result.
func SupplierPage(responseTime int, items ...SupplierItem) string {
	var b strings.Builder
	b.WriteString("<ResponseValue>")
	for _, item := range items {
		fmt.Fprintf(&b,
			"<ClientCodeToken><ClientCode>%s</ClientCode><Active>true</Active><Token>%d</Token></ClientCodeToken>",
			item.ClientCode, item.Token)
	}
	b.WriteString("</ResponseValue>")
	fmt.Fprintf(&b, "<ResponseTime>%d</ResponseTime>", responseTime)
	return b.String()
}

// SupplierDetail renders a SupplierInfo result for one supplier.
func SupplierDetail(code, name string) string {
	return fmt.Sprintf(
		"<ResponseValue><SupplierCode>%s</SupplierCode><Name>%s</Name></ResponseValue><ResponseTime>2</ResponseTime>",
		code, name)
}

// AuthFault returns a SOAP 1.2 fault envelope for a rejected security code.
func AuthFault() string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<soap:Fault><soap:Code><soap:Value>soap:Sender</soap:Value></soap:Code>` +
		`<soap:Reason><soap:Text xml:lang="en">Invalid security code</soap:Text></soap:Reason>` +
		`</soap:Fault></soap:Body></soap:Envelope>`
}

// AuthFaultHandler answers every request with the security fault.
func AuthFaultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", soapContentType)
		w.Write([]byte(AuthFault()))
	}
}

// ServerFault returns a fault envelope for a server-side processing error.
func ServerFault() string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<soap:Fault><faultcode>soap:Server</faultcode>` +
		`<faultstring>Server was unable to process request</faultstring>` +
		`</soap:Fault></soap:Body></soap:Envelope>`
}

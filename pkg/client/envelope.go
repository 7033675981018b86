package client

import (
	"encoding/xml"
	"strings"
)

// Namespace is the XML namespace of the Sherpa web service. SOAPAction
// header values and response element names derive from it.
const Namespace = "http://sherpa.sherpaan.nl/"

const soap12Namespace = "http://www.w3.org/2003/05/soap-envelope"

// Request describes a single service call.
type Request struct {
	// Service is the SOAP operation name, e.g. "ChangedStock".
	Service string

	// Params are rendered inside the operation element in order. The
	// security code is injected before them and must not appear here.
	Params []Param
}

// Param is one operation parameter. A scalar parameter renders as a single
// element holding Value. When List is non-empty the parameter renders as a
// container with one Child element per entry instead.
type Param struct {
	Name  string
	Value string

	List  []string
	Child string
}

// Scalar returns a scalar parameter.
func Scalar(name, value string) Param {
	return Param{Name: name, Value: value}
}

// ListOf returns a list parameter whose entries render as child elements.
func ListOf(name, child string, values ...string) Param {
	return Param{Name: name, Child: child, List: values}
}

// buildEnvelope renders the SOAP 1.2 request body for a call. Parameter
// order is preserved; the security code always comes first, which is what
// the service contract expects.
func buildEnvelope(securityCode string, req Request) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<soap12:Envelope xmlns:soap12="` + soap12Namespace + `">`)
	b.WriteString(`<soap12:Body>`)
	b.WriteString(`<tns:` + req.Service + ` xmlns:tns="` + Namespace + `">`)

	writeElement(&b, "securityCode", securityCode)
	for _, p := range req.Params {
		if len(p.List) > 0 {
			b.WriteString(`<tns:` + p.Name + `>`)
			for _, v := range p.List {
				writeElement(&b, p.Child, v)
			}
			b.WriteString(`</tns:` + p.Name + `>`)
			continue
		}
		writeElement(&b, p.Name, p.Value)
	}

	b.WriteString(`</tns:` + req.Service + `>`)
	b.WriteString(`</soap12:Body>`)
	b.WriteString(`</soap12:Envelope>`)
	return b.String()
}

// writeElement writes <tns:name>value</tns:name> with XML escaping applied
// to the value. Element names come from the stream registry and are trusted.
func writeElement(b *strings.Builder, name, value string) {
	b.WriteString(`<tns:` + name + `>`)
	// strings.Builder writes never fail
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString(`</tns:` + name + `>`)
}

// soapAction returns the quoted SOAPAction header value for a service.
func soapAction(service string) string {
	return `"` + Namespace + service + `"`
}

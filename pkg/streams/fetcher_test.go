package streams

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/XAbade/tap-sherpaan/pkg/client"
)

type capturedCall struct {
	body   string
	action string
}

// newCapturingClient wires a client to a server that records every request
// and replies with an empty result for service.
func newCapturingClient(t *testing.T, service string, calls *[]capturedCall) *client.Client {
	t.Helper()

	response := `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<` + service + `Response xmlns="http://sherpa.sherpaan.nl/">` +
		`<` + service + `Result><ResponseValue /><ResponseTime>1</ResponseTime></` + service + `Result>` +
		`</` + service + `Response></soap:Body></soap:Envelope>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*calls = append(*calls, capturedCall{
			body:   string(body),
			action: r.Header.Get("SOAPAction"),
		})
		w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	c, err := client.New(client.Config{ShopID: "214", SecurityCode: "secret", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c
}

// assertOrdered checks that each part appears in body, in order.
func assertOrdered(t *testing.T, body string, parts ...string) {
	t.Helper()

	pos := -1
	for _, part := range parts {
		idx := strings.Index(body, part)
		if idx < 0 {
			t.Fatalf("Request is missing %q:\n%s", part, body)
		}
		if idx < pos {
			t.Errorf("%q rendered out of order:\n%s", part, body)
		}
		pos = idx
	}
}

func TestFetcher_PagedRequest(t *testing.T) {
	def, _ := Get("changed_stock")
	var calls []capturedCall
	fetcher := NewFetcher(newCapturingClient(t, def.Service, &calls), def)

	page, err := fetcher.FetchPage(context.Background(), 41, 200)
	if err != nil {
		t.Fatalf("FetchPage() failed: %v", err)
	}
	if page == nil {
		t.Fatal("FetchPage() returned nil page")
	}
	if len(calls) != 1 {
		t.Fatalf("Request count = %d, want 1", len(calls))
	}

	assertOrdered(t, calls[0].body,
		`<tns:ChangedStock xmlns:tns="http://sherpa.sherpaan.nl/">`,
		`<tns:securityCode>secret</tns:securityCode>`,
		`<tns:token>41</tns:token>`,
		`<tns:maxResult>200</tns:maxResult>`,
	)
	if want := `"http://sherpa.sherpaan.nl/ChangedStock"`; calls[0].action != want {
		t.Errorf("SOAPAction = %s, want %s", calls[0].action, want)
	}
}

func TestFetcher_ListParams(t *testing.T) {
	def, _ := Get("changed_items_information")
	var calls []capturedCall
	fetcher := NewFetcher(newCapturingClient(t, def.Service, &calls), def)

	if _, err := fetcher.FetchPage(context.Background(), 1, 200); err != nil {
		t.Fatalf("FetchPage() failed: %v", err)
	}

	types := `<tns:itemInformationTypes>` +
		`<tns:ItemInformationType>General</tns:ItemInformationType>` +
		`<tns:ItemInformationType>EanCode</tns:ItemInformationType>` +
		`<tns:ItemInformationType>CustomFields</tns:ItemInformationType>` +
		`<tns:ItemInformationType>Warehouses</tns:ItemInformationType>` +
		`<tns:ItemInformationType>ItemSuppliers</tns:ItemInformationType>` +
		`<tns:ItemInformationType>ItemAssemblies</tns:ItemInformationType>` +
		`<tns:ItemInformationType>ItemPurchases</tns:ItemInformationType>` +
		`</tns:itemInformationTypes>`

	// List parameters render after the token and page size.
	assertOrdered(t, calls[0].body,
		`<tns:token>1</tns:token>`,
		`<tns:count>200</tns:count>`,
		types,
	)
}

func TestDetailFetcher_LookupRequest(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantParam string
	}{
		{"supplier_info", "C-1", `<tns:supplierCode>C-1</tns:supplierCode>`},
		{"purchase_info", "PO-77", `<tns:purchaseNumber>PO-77</tns:purchaseNumber>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, _ := Get(tt.name)
			var calls []capturedCall
			fetcher := NewDetailFetcher(newCapturingClient(t, def.Service, &calls), def)

			if _, err := fetcher.FetchDetail(context.Background(), tt.key); err != nil {
				t.Fatalf("FetchDetail() failed: %v", err)
			}

			body := calls[0].body
			assertOrdered(t, body,
				`<tns:securityCode>secret</tns:securityCode>`,
				tt.wantParam,
			)
			// Detail lookups are keyed, never token-paged.
			if strings.Contains(body, "<tns:token>") {
				t.Errorf("Detail request carries a token:\n%s", body)
			}
		})
	}
}

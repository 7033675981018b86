package client

import (
	"strings"
	"testing"
)

const stockResponseXML = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <ChangedStockResponse xmlns="http://sherpa.sherpaan.nl/">
      <ChangedStockResult>
        <ResponseValue>
          <ItemStockToken>
            <Token>42</Token>
            <ItemCode>A-100</ItemCode>
          </ItemStockToken>
          <ItemStockToken>
            <Token>43</Token>
            <ItemCode>A-200</ItemCode>
          </ItemStockToken>
        </ResponseValue>
        <ResponseTime>17</ResponseTime>
      </ChangedStockResult>
    </ChangedStockResponse>
  </soap:Body>
</soap:Envelope>`

const authFaultXML = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <soap:Fault>
      <soap:Code><soap:Value>soap:Receiver</soap:Value></soap:Code>
      <soap:Reason><soap:Text xml:lang="en">Invalid security code</soap:Text></soap:Reason>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`

const serverFaultXML = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault>
      <faultcode>soap:Server</faultcode>
      <faultstring>Server was unable to process request</faultstring>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`

func TestDecodeResponse_NavigatesPrefixedElements(t *testing.T) {
	result, err := decodeResponse("ChangedStock", []byte(stockResponseXML), false)
	if err != nil {
		t.Fatalf("decodeResponse() failed: %v", err)
	}

	value, ok := result["ResponseValue"].(map[string]any)
	if !ok {
		t.Fatalf("ResponseValue = %T, want map", result["ResponseValue"])
	}
	items, ok := value["ItemStockToken"].([]any)
	if !ok {
		t.Fatalf("ItemStockToken = %T, want slice", value["ItemStockToken"])
	}
	if len(items) != 2 {
		t.Fatalf("Item count = %d, want 2", len(items))
	}

	first, ok := items[0].(map[string]any)
	if !ok {
		t.Fatalf("Item = %T, want map", items[0])
	}
	if first["Token"] != "42" {
		t.Errorf("Token = %v (%T), want %q", first["Token"], first["Token"], "42")
	}
	if result["ResponseTime"] != "17" {
		t.Errorf("ResponseTime = %v (%T), want %q", result["ResponseTime"], result["ResponseTime"], "17")
	}
}

func TestDecodeResponse_CastValues(t *testing.T) {
	result, err := decodeResponse("ChangedStock", []byte(stockResponseXML), true)
	if err != nil {
		t.Fatalf("decodeResponse() failed: %v", err)
	}

	value := result["ResponseValue"].(map[string]any)
	first := value["ItemStockToken"].([]any)[0].(map[string]any)
	if first["Token"] != float64(42) {
		t.Errorf("Token = %v (%T), want float64 42", first["Token"], first["Token"])
	}
}

func TestDecodeResponse_EmptyResult(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "self-closing result",
			body: `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
				<soap:Body><ChangedStockResponse xmlns="http://sherpa.sherpaan.nl/">
				<ChangedStockResult /></ChangedStockResponse></soap:Body></soap:Envelope>`,
		},
		{
			name: "missing result",
			body: `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
				<soap:Body><ChangedStockResponse xmlns="http://sherpa.sherpaan.nl/">
				</ChangedStockResponse></soap:Body></soap:Envelope>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := decodeResponse("ChangedStock", []byte(tt.body), false)
			if err != nil {
				t.Fatalf("decodeResponse() failed: %v", err)
			}
			if len(result) != 0 {
				t.Errorf("Result = %#v, want empty map", result)
			}
		})
	}
}

func TestDecodeResponse_MissingResponseElement(t *testing.T) {
	body := `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
		<soap:Body><SomethingElse /></soap:Body></soap:Envelope>`

	_, err := decodeResponse("ChangedStock", []byte(body), false)
	if err == nil {
		t.Fatal("Expected error for missing response element")
	}
	if !strings.Contains(err.Error(), "ChangedStockResponse") {
		t.Errorf("Error = %q, want mention of ChangedStockResponse", err.Error())
	}
}

func TestDecodeResponse_ScalarResult(t *testing.T) {
	body := `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
		<soap:Body><ChangedStockResponse xmlns="http://sherpa.sherpaan.nl/">
		<ChangedStockResult>oops</ChangedStockResult></ChangedStockResponse></soap:Body></soap:Envelope>`

	_, err := decodeResponse("ChangedStock", []byte(body), false)
	if err == nil {
		t.Fatal("Expected error for scalar result")
	}
	if !strings.Contains(err.Error(), "not a mapping") {
		t.Errorf("Error = %q, want mention of result shape", err.Error())
	}
}

func TestDecodeResponse_InvalidXML(t *testing.T) {
	_, err := decodeResponse("ChangedStock", []byte("<broken"), false)
	if err == nil {
		t.Fatal("Expected error for invalid XML")
	}
}

func TestDecodeResponse_Fault(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantClass   ErrorClass
		wantMessage string
	}{
		{
			name:        "security fault classifies as auth",
			body:        authFaultXML,
			wantClass:   ErrorClassAuth,
			wantMessage: "Invalid security code",
		},
		{
			name:        "server fault classifies as fatal",
			body:        serverFaultXML,
			wantClass:   ErrorClassFatal,
			wantMessage: "Server was unable to process request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeResponse("ChangedStock", []byte(tt.body), false)
			if err == nil {
				t.Fatal("Expected fault error")
			}
			svcErr, ok := err.(*ServiceError)
			if !ok {
				t.Fatalf("Error = %T, want *ServiceError", err)
			}
			if svcErr.Class != tt.wantClass {
				t.Errorf("Class = %q, want %q", svcErr.Class, tt.wantClass)
			}
			if svcErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", svcErr.Message, tt.wantMessage)
			}
		})
	}
}

func TestParseFault(t *testing.T) {
	if fault := parseFault("ChangedStock", []byte(authFaultXML)); fault == nil {
		t.Error("parseFault() = nil, want fault")
	} else if fault.Class != ErrorClassAuth {
		t.Errorf("Class = %q, want %q", fault.Class, ErrorClassAuth)
	}

	if fault := parseFault("ChangedStock", []byte("not xml at all")); fault != nil {
		t.Errorf("parseFault() = %v, want nil for unparseable body", fault)
	}
	if fault := parseFault("ChangedStock", []byte(stockResponseXML)); fault != nil {
		t.Errorf("parseFault() = %v, want nil for fault-free body", fault)
	}
}

func TestChildValue_PrefixTolerance(t *testing.T) {
	m := map[string]any{
		"soap:Body": "prefixed",
		"Plain":     "exact",
	}

	if v, ok := childValue(m, "Body"); !ok || v != "prefixed" {
		t.Errorf("childValue(Body) = %v, %v; want prefixed, true", v, ok)
	}
	if v, ok := childValue(m, "Plain"); !ok || v != "exact" {
		t.Errorf("childValue(Plain) = %v, %v; want exact, true", v, ok)
	}
	if _, ok := childValue(m, "Missing"); ok {
		t.Error("childValue(Missing) found a value, want none")
	}
}

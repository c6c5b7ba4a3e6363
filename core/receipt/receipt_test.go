package receipt

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := New("operator", "system_check", "status", map[string]interface{}{"channel": "ch0"})
	r.WithResponse(StatusOK, map[string]interface{}{"voltage": 1200.0})

	data, err := Encode(r)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	if decoded.Sender != r.Sender || decoded.Executor != r.Executor || decoded.Title != r.Title {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, r)
	}
	if !decoded.Response.IsOK() {
		t.Fatalf("expected decoded response to report OK, got %+v", decoded.Response)
	}
}

func TestDecodeRejectsNonReceiptPayload(t *testing.T) {
	cases := []string{
		`{"title": "status"}`,
		`{"sender": "operator"}`,
		`{"executor": "system_check"}`,
		`not even json`,
	}
	for _, c := range cases {
		if _, err := Decode([]byte(c)); err == nil {
			t.Errorf("Decode(%q) = nil error, want error", c)
		}
	}
}

func TestResponseAccessors(t *testing.T) {
	mapResp := NewResponse(StatusOK, map[string]interface{}{"a": 1})
	if _, ok := mapResp.AsMap(); !ok {
		t.Error("AsMap() = false for a map body, want true")
	}
	if _, ok := mapResp.AsString(); ok {
		t.Error("AsString() = true for a map body, want false")
	}

	strResp := NewResponse(StatusApplicationFail, "interlock engaged")
	if _, ok := strResp.AsString(); !ok {
		t.Error("AsString() = false for a string body, want true")
	}
	if strResp.IsOK() {
		t.Error("IsOK() = true for a non-OK status, want false")
	}

	var nilResp *ReceiptResponse
	if nilResp.IsOK() {
		t.Error("IsOK() on a nil response should be false, not panic")
	}
}

package httpd

import (
	"testing"
)

func testEndpoint(path string, method Method, params map[string]ParamSpec) Endpoint {
	return Endpoint{
		Path:   path,
		Method: method,
		Params: params,
		Handler: func(*Request) *Response {
			return NewResponse(StatusOK)
		},
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register(testEndpoint("info", MethodGet, nil))
	reg.Register(testEndpoint("login", MethodPost, nil))

	if reg.Resolve("info", MethodGet) == nil {
		t.Error("expected exact match to resolve")
	}
	if reg.Resolve("INFO", MethodGet) == nil {
		t.Error("route matching must be case-insensitive")
	}
	if reg.Resolve("info", MethodPost) != nil {
		t.Error("method mismatch must not resolve")
	}
	if reg.Resolve("missing", MethodGet) != nil {
		t.Error("unknown route must not resolve")
	}
}

func TestRegistrySameRouteDifferentMethods(t *testing.T) {
	reg := NewRegistry()
	reg.Register(testEndpoint("static", MethodGet, nil))
	reg.Register(testEndpoint("static", MethodHead, nil))

	if reg.Resolve("static", MethodGet) == nil || reg.Resolve("static", MethodHead) == nil {
		t.Error("both methods must resolve independently")
	}
	if got := len(reg.ByPath("static")); got != 2 {
		t.Errorf("ByPath() returned %d endpoints, want 2", got)
	}
}

func TestEndpointValidate(t *testing.T) {
	ep := testEndpoint("file_location", MethodGet, map[string]ParamSpec{
		"ps_url_id": {Category: ParamAny},
		"type":      {Category: ParamAny},
		"path":      {Category: ParamAny, Optional: true},
	})

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "all required present in query",
			raw:  "GET /v1/file_location?ps_url_id=abc&type=BAM HTTP/1.1\r\n\r\n",
		},
		{
			name:    "missing required parameter",
			raw:     "GET /v1/file_location?ps_url_id=abc HTTP/1.1\r\n\r\n",
			wantErr: true,
		},
		{
			name: "optional parameter absent",
			raw:  "GET /v1/file_location?ps_url_id=abc&type=BAM HTTP/1.1\r\n\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			err = ep.Validate(req)
			if tt.wantErr && err == nil {
				t.Error("Validate() expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestEndpointValidatePathParams(t *testing.T) {
	ep := testEndpoint("temp", MethodGet, map[string]ParamSpec{
		"id":       {Category: ParamPath},
		"filename": {Category: ParamPath, Optional: true},
	})

	req, err := Parse([]byte("GET /v1/temp/abc123 HTTP/1.1\r\n\r\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if err := ep.Validate(req); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	req, err = Parse([]byte("GET /v1/temp HTTP/1.1\r\n\r\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if err := ep.Validate(req); err == nil {
		t.Error("Validate() expected error for missing path parameter")
	}
}

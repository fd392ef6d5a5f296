package util

import (
	"net/http"
	"testing"
	"time"
)

func TestNewProxyFunc_SchemeSelection(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "http://secure:3128", "internal.example")

	tests := []struct {
		url  string
		want string
	}{
		{"http://api.example.com/v1", "plain:3128"},
		{"https://api.example.com/v1", "secure:3128"},
		{"https://internal.example/v1", ""},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s) error: %v", tt.url, err)
		}
		host := ""
		if got != nil {
			host = got.Host
		}
		if host != tt.want {
			t.Errorf("proxy(%s) = %q, want %q", tt.url, host, tt.want)
		}
	}
}

func TestNewHTTPClient_Timeout(t *testing.T) {
	c := NewHTTPClient(3*time.Second, "", "", "")
	if c.Timeout != 3*time.Second {
		t.Errorf("Expected 3s timeout, got %v", c.Timeout)
	}
	if c.Transport == nil {
		t.Error("Expected transport to be set")
	}
}

package security

import "testing"

func TestValidateServiceURLRejectsZonedIPv6ByDefault(t *testing.T) {
	_, err := ValidateServiceURL("https://[fe80::1%25eth0]/", ServiceURLOptions{})
	if err == nil {
		t.Fatal("expected zone-literal IPv6 host to be rejected")
	}
}

func TestValidateServiceURLAllowsZonedIPv6WhenLocalNetworksAllowed(t *testing.T) {
	_, err := ValidateServiceURL("https://[fe80::1%25eth0]/", ServiceURLOptions{
		AllowLocalNetworks: true,
	})
	if err != nil {
		t.Fatalf("expected zone-literal IPv6 host to be allowed when local networks are enabled: %v", err)
	}
}

func TestValidateServiceURLLocalhostDefaults(t *testing.T) {
	u, err := ValidateServiceURL("http://localhost:8000/", ServiceURLOptions{
		AllowHTTP:          true,
		AllowLocalNetworks: true,
	})
	if err != nil {
		t.Fatalf("expected local http service to be allowed: %v", err)
	}
	if got := u.String(); got != "http://localhost:8000" {
		t.Fatalf("expected trailing slash to be trimmed, got %q", got)
	}

	if _, err := ValidateServiceURL("http://localhost:8000", ServiceURLOptions{AllowLocalNetworks: true}); err == nil {
		t.Fatal("expected http to be rejected when AllowHTTP is false")
	}
	if _, err := ValidateServiceURL("https://127.0.0.1", ServiceURLOptions{}); err == nil {
		t.Fatal("expected loopback to be rejected when local networks are not allowed")
	}
}

func TestValidateServiceURLStripsQueryAndKeepsPrefix(t *testing.T) {
	u, err := ValidateServiceURL("https://chat.example.com/api/v1/?debug=1#frag", ServiceURLOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := u.String(); got != "https://chat.example.com/api/v1" {
		t.Fatalf("unexpected normalized URL %q", got)
	}
}

func TestValidateServiceURLRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "https://", "https://user:pw@example.com", "https://0.0.0.0"} {
		if _, err := ValidateServiceURL(raw, ServiceURLOptions{AllowHTTP: true, AllowLocalNetworks: true}); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

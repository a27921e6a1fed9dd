package apikey

import (
	"strings"
	"testing"
)

func TestGenerateKeyRoundTrip(t *testing.T) {
	key, hash, err := GenerateKey("svc_notify", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "svc_notify_") {
		t.Errorf("key %q missing prefix", key)
	}
	if !Matches(key, "secret", hash) {
		t.Error("generated key must match its own hash")
	}
	if Matches(key, "other-secret", hash) {
		t.Error("key must not match under a different secret")
	}
	if Matches("svc_notify_deadbeef", "secret", hash) {
		t.Error("different key must not match")
	}
}

func TestValidateKeyFormat(t *testing.T) {
	if !ValidateKeyFormat("svc_notify_abc", "svc_notify") {
		t.Error("expected prefix to validate")
	}
	if ValidateKeyFormat("other_abc", "svc_notify") {
		t.Error("wrong prefix must not validate")
	}
}

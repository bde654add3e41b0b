package validator

import (
	"strings"
	"testing"
)

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		publicKey string
		wantField string
	}{
		{"valid", "alice", "PK_A", ""},
		{"missing username", "", "PK_A", "username"},
		{"short username", "al", "PK_A", "username"},
		{"long username", strings.Repeat("a", 51), "PK_A", "username"},
		{"bad characters", "al ice", "PK_A", "username"},
		{"missing key", "alice", "   ", "publicKey"},
		{"huge key", "alice", strings.Repeat("k", maxPublicKeyLen+1), "publicKey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateRegister(tt.username, tt.publicKey)
			if tt.wantField == "" {
				if errs.HasErrors() {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			if _, ok := errs[tt.wantField]; !ok {
				t.Fatalf("expected error on %s, got %v", tt.wantField, errs)
			}
		})
	}
}

func TestValidateLogin(t *testing.T) {
	errs := ValidateLogin("", "")
	if len(errs) != 2 {
		t.Fatalf("expected both fields flagged, got %v", errs)
	}
	if ValidateLogin("alice", "proof").HasErrors() {
		t.Fatalf("expected valid login input")
	}
}

func TestValidateAddContact(t *testing.T) {
	if !ValidateAddContact("bob", "").HasErrors() {
		t.Fatalf("expected missing public key to be rejected")
	}
	if ValidateAddContact("bob", "PK_B").HasErrors() {
		t.Fatalf("expected valid contact input")
	}
}

func TestValidateSendMessage(t *testing.T) {
	hash := "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	bad := "Qm/../etc"
	empty := ""

	tests := []struct {
		name      string
		receiver  string
		content   string
		hash      *string
		wantField string
	}{
		{"valid", "id", "encryptedBlob1", nil, ""},
		{"valid with hash", "id", "encryptedBlob1", &hash, ""},
		{"empty hash ignored", "id", "encryptedBlob1", &empty, ""},
		{"missing receiver", "", "x", nil, "receiverId"},
		{"missing content", "id", "", nil, "content"},
		{"bad hash", "id", "x", &bad, "ipfsHash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSendMessage(tt.receiver, tt.content, tt.hash)
			if tt.wantField == "" {
				if errs.HasErrors() {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			if _, ok := errs[tt.wantField]; !ok {
				t.Fatalf("expected error on %s, got %v", tt.wantField, errs)
			}
		})
	}
}

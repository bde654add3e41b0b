package keys

import "testing"

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----\n")
	b := Fingerprint("-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----")
	if a != b {
		t.Fatalf("trailing whitespace changed fingerprint: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %d (%s)", len(a), a)
	}
	if Fingerprint("PK_A") == Fingerprint("PK_B") {
		t.Fatalf("distinct keys share a fingerprint")
	}
}

func TestFormat(t *testing.T) {
	if got, want := Format("0a1b2c3d4e5f6071"), "0A1B 2C3D 4E5F 6071"; got != want {
		t.Fatalf("Format: got %q want %q", got, want)
	}
}

func TestAcceptAnyProof(t *testing.T) {
	if !AcceptAnyProof.VerifyProof("alice", "anything") {
		t.Fatalf("expected non-empty proof to pass")
	}
	if AcceptAnyProof.VerifyProof("alice", "") {
		t.Fatalf("expected empty proof to fail")
	}
}

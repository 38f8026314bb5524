package federation

import "testing"

func TestCheckProtocolCompatible_AcceptsSameMajor(t *testing.T) {
	if err := CheckProtocolCompatible("1.0.0"); err != nil {
		t.Fatalf("expected 1.0.0 compatible, got %v", err)
	}
	if err := CheckProtocolCompatible("1.9.3"); err != nil {
		t.Fatalf("expected 1.9.3 compatible, got %v", err)
	}
}

func TestCheckProtocolCompatible_RejectsMajorBump(t *testing.T) {
	if err := CheckProtocolCompatible("2.0.0"); err == nil {
		t.Fatal("expected 2.0.0 to be rejected")
	}
}

func TestCheckProtocolCompatible_RejectsMalformedVersion(t *testing.T) {
	if err := CheckProtocolCompatible("not-a-version"); err == nil {
		t.Fatal("expected malformed version to be rejected")
	}
}

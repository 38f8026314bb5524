package crypto

import "testing"

func TestDeriveTenantAnchorSigner_IsDeterministic(t *testing.T) {
	master, err := NewEd25519Signer("master-1")
	if err != nil {
		t.Fatalf("failed to create master signer: %v", err)
	}

	a, err := DeriveTenantAnchorSigner(master, "tenant-a")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	again, err := DeriveTenantAnchorSigner(master, "tenant-a")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if a.PublicKey() != again.PublicKey() {
		t.Fatal("expected deterministic derivation for the same tenant")
	}
}

func TestDeriveTenantAnchorSigner_DiffersAcrossTenants(t *testing.T) {
	master, err := NewEd25519Signer("master-1")
	if err != nil {
		t.Fatalf("failed to create master signer: %v", err)
	}

	a, err := DeriveTenantAnchorSigner(master, "tenant-a")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	b, err := DeriveTenantAnchorSigner(master, "tenant-b")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if a.PublicKey() == b.PublicKey() {
		t.Fatal("expected different tenants to derive different keys")
	}
}

func TestDeriveTenantAnchorSigner_RejectsEmptyTenantID(t *testing.T) {
	master, err := NewEd25519Signer("master-1")
	if err != nil {
		t.Fatalf("failed to create master signer: %v", err)
	}
	if _, err := DeriveTenantAnchorSigner(master, ""); err == nil {
		t.Fatal("expected error for empty tenantID")
	}
}

package hsm

import (
	"context"
	"testing"
	"time"

	"finova-core/chain/crypto"
)

func newTestProvider(t *testing.T) *AWSCloudHSMProvider {
	t.Helper()
	p := NewAWSCloudHSMProvider()
	cfg := HSMConfig{
		Credentials: map[string]string{"region": "us-east-1"},
		FIPSLevel:   3,
	}
	if err := p.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return p
}

func TestGenerateKeyThenSignVerifies(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	handle, err := p.GenerateKey(ctx, "bridge-validator-1", crypto.SigAlgEd25519)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	msg := []byte("unlock message")
	sig, err := p.Sign(ctx, "bridge-validator-1", msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if !crypto.Verify(msg, sig, handle.PublicKey) {
		t.Fatalf("signature produced by HSM-resident key did not verify against its own public key")
	}
}

func TestGenerateKeyRejectsUnsupportedAlgorithm(t *testing.T) {
	p := newTestProvider(t)
	_, err := p.GenerateKey(context.Background(), "k1", crypto.SignatureAlgorithm(99))
	if err == nil {
		t.Fatalf("expected an error for an unsupported algorithm")
	}
}

func TestDeleteKeyRemovesFromListing(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	p.GenerateKey(ctx, "k1", crypto.SigAlgEd25519)

	if err := p.DeleteKey(ctx, "k1"); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, err := p.GetKey(ctx, "k1"); err == nil {
		t.Fatalf("GetKey should fail for a deleted key")
	}
}

func TestManagerCreateValidatorKeySetsBridgeUsage(t *testing.T) {
	m := NewHSMManager(HSMManagerConfig{RequiredFIPSLevel: 3})
	p := newTestProvider(t)
	if err := m.RegisterProvider("aws-cloudhsm", p); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	handle, err := m.CreateValidatorKey(context.Background(), "validator-7", "aws-cloudhsm")
	if err != nil {
		t.Fatalf("CreateValidatorKey: %v", err)
	}
	if handle.Usage != KeyUsageBridge {
		t.Fatalf("Usage = %v, want KeyUsageBridge", handle.Usage)
	}
}

func TestManagerRegisterProviderRejectsDuplicateName(t *testing.T) {
	m := NewHSMManager(HSMManagerConfig{})
	p := newTestProvider(t)
	if err := m.RegisterProvider("aws-cloudhsm", p); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := m.RegisterProvider("aws-cloudhsm", p); err == nil {
		t.Fatalf("expected an error registering a duplicate provider name")
	}
}

func TestValidateProviderFailsBelowRequiredFIPSLevel(t *testing.T) {
	m := NewHSMManager(HSMManagerConfig{RequiredFIPSLevel: 4})
	p := newTestProvider(t)
	m.RegisterProvider("aws-cloudhsm", p)

	result, err := m.ValidateProvider(context.Background(), "aws-cloudhsm")
	if err != nil {
		t.Fatalf("ValidateProvider: %v", err)
	}
	if result.Valid {
		t.Fatalf("aws-cloudhsm is FIPS level 3, should fail a level-4 requirement")
	}
}

func TestEmergencyRecoveryRejectsExpiredRequest(t *testing.T) {
	m := NewHSMManager(HSMManagerConfig{})
	err := m.EmergencyRecovery(context.Background(), EmergencyParams{
		TriggerReason: "suspected compromise",
		ExpiresAt:     time.Now().Add(-time.Hour),
	})
	if err == nil {
		t.Fatalf("expected an error for an expired emergency recovery request")
	}
}

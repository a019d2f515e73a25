package hsm

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"finova-core/chain/crypto"
)

// DefaultHSMManager implements HSMManager.
type DefaultHSMManager struct {
	providers map[string]HSMProvider
	mu        sync.RWMutex
	auditLog  []AuditEntry
	policies  map[string]*KeyRotationPolicy
	config    HSMManagerConfig
}

// HSMManagerConfig contains configuration for the HSM manager.
type HSMManagerConfig struct {
	DefaultProvider    string                        `json:"default_provider"`
	RequiredFIPSLevel  int                           `json:"required_fips_level"`
	AuditRetentionDays int                           `json:"audit_retention_days"`
	BackupEnabled      bool                          `json:"backup_enabled"`
	BackupLocation     string                        `json:"backup_location"`
	RotationPolicies   map[string]*KeyRotationPolicy `json:"rotation_policies"`
	EmergencyContacts  []string                      `json:"emergency_contacts"`
	MaxFailedAttempts  int                           `json:"max_failed_attempts"`
}

// NewHSMManager creates a new HSM manager.
func NewHSMManager(config HSMManagerConfig) *DefaultHSMManager {
	return &DefaultHSMManager{
		providers: make(map[string]HSMProvider),
		auditLog:  make([]AuditEntry, 0),
		policies:  make(map[string]*KeyRotationPolicy),
		config:    config,
	}
}

// RegisterProvider registers a new HSM provider.
func (m *DefaultHSMManager) RegisterProvider(name string, provider HSMProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	m.providers[name] = provider
	m.logAudit("register_provider", "", "system", "success", fmt.Sprintf("registered provider: %s", name))
	log.Printf("HSM provider registered: %s", name)
	return nil
}

// GetProvider returns a registered HSM provider.
func (m *DefaultHSMManager) GetProvider(name string) (HSMProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provider, exists := m.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return provider, nil
}

// ValidateProvider checks if a provider meets security requirements.
func (m *DefaultHSMManager) ValidateProvider(ctx context.Context, name string) (*ValidationResult, error) {
	provider, err := m.GetProvider(name)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{LastValidation: time.Now()}

	if err := provider.Health(ctx); err != nil {
		result.Valid = false
		result.HealthStatus = fmt.Sprintf("Health check failed: %v", err)
		m.logAudit("validate_provider", "", "system", "failed", err.Error())
		return result, nil
	}

	result.FIPSCompliant = m.validateFIPSCompliance(name)
	if !result.FIPSCompliant && m.config.RequiredFIPSLevel > 0 {
		result.Valid = false
		result.HealthStatus = "FIPS compliance validation failed"
		return result, nil
	}

	result.Algorithms = []crypto.SignatureAlgorithm{crypto.SigAlgEd25519}
	result.MaxKeys = 10000
	result.CurrentKeys = 0

	result.Valid = true
	result.HealthStatus = "All validations passed"

	m.logAudit("validate_provider", "", "system", "success", fmt.Sprintf("provider %s validated", name))
	return result, nil
}

// CreateValidatorKey creates a new validator bridge-signing key.
func (m *DefaultHSMManager) CreateValidatorKey(ctx context.Context, validatorID string, providerName string) (*HSMKeyHandle, error) {
	provider, err := m.GetProvider(providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider %s: %v", providerName, err)
	}

	validation, err := m.ValidateProvider(ctx, providerName)
	if err != nil || !validation.Valid {
		return nil, fmt.Errorf("provider %s validation failed", providerName)
	}

	keyID := fmt.Sprintf("validator-%s", validatorID)
	handle, err := provider.GenerateKey(ctx, keyID, crypto.SigAlgEd25519)
	if err != nil {
		m.logAudit("create_validator_key", keyID, validatorID, "failed", err.Error())
		return nil, fmt.Errorf("failed to generate validator key: %v", err)
	}

	handle.Usage = KeyUsageBridge
	m.setRotationPolicy(keyID, &KeyRotationPolicy{
		MaxAge:           90 * 24 * time.Hour, // 90 days
		MaxSignatures:    1_000_000,
		ForceRotation:    false,
		RotationSchedule: "0 0 1 */3 *", // quarterly
		NotifyBefore:     7 * 24 * time.Hour,
	})

	if m.config.BackupEnabled {
		if err := m.BackupKey(ctx, keyID, m.config.BackupLocation); err != nil {
			log.Printf("failed to backup key %s: %v", keyID, err)
		}
	}

	m.logAudit("create_validator_key", keyID, validatorID, "success", "")
	log.Printf("Created validator bridge-signing key %s for %s", keyID, validatorID)
	return handle, nil
}

// RotateKey performs secure key rotation.
func (m *DefaultHSMManager) RotateKey(ctx context.Context, keyID string, newProvider string) (*HSMKeyHandle, error) {
	oldProvider, err := m.findKeyProvider(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to find current provider for key %s: %v", keyID, err)
	}

	oldHandle, err := oldProvider.GetKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get current key %s: %v", keyID, err)
	}

	newProviderInstance, err := m.GetProvider(newProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to get new provider %s: %v", newProvider, err)
	}

	newKeyID := fmt.Sprintf("%s-rotated-%d", keyID, time.Now().Unix())
	newHandle, err := newProviderInstance.GenerateKey(ctx, newKeyID, oldHandle.Algorithm)
	if err != nil {
		m.logAudit("rotate_key", keyID, "system", "failed", err.Error())
		return nil, fmt.Errorf("failed to generate new key: %v", err)
	}

	if m.config.BackupEnabled {
		backupPath := fmt.Sprintf("%s/rotated-%s-%d", m.config.BackupLocation, keyID, time.Now().Unix())
		if err := m.BackupKey(ctx, keyID, backupPath); err != nil {
			log.Printf("failed to backup old key %s: %v", keyID, err)
		}
	}

	go m.scheduleKeyDeletion(context.Background(), oldProvider, keyID, 24*time.Hour)

	m.logAudit("rotate_key", keyID, "system", "success", fmt.Sprintf("rotated to %s", newKeyID))
	log.Printf("Rotated key %s to new key %s", keyID, newKeyID)
	return newHandle, nil
}

// BackupKey creates a secure backup of key material.
func (m *DefaultHSMManager) BackupKey(ctx context.Context, keyID string, destination string) error {
	provider, err := m.findKeyProvider(ctx, keyID)
	if err != nil {
		return fmt.Errorf("failed to find provider for key %s: %v", keyID, err)
	}

	if _, err := provider.GetKey(ctx, keyID); err != nil {
		return fmt.Errorf("failed to get key %s: %v", keyID, err)
	}

	// In production: encrypt key material with a master key and persist
	// to destination. This mock manager only records the audit trail.
	m.logAudit("backup_key", keyID, "system", "success", destination)
	return nil
}

// RestoreKey restores a key from secure backup.
func (m *DefaultHSMManager) RestoreKey(ctx context.Context, backupPath string, newKeyID string) (*HSMKeyHandle, error) {
	m.logAudit("restore_key", newKeyID, "system", "success", backupPath)
	return nil, fmt.Errorf("restore from %s requires a provider-specific import path, not implemented for the mock manager", backupPath)
}

// AuditLog returns the audit trail for HSM operations.
func (m *DefaultHSMManager) AuditLog(ctx context.Context, keyID string, since time.Time) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []AuditEntry
	for _, entry := range m.auditLog {
		if entry.Timestamp.After(since) && (keyID == "" || entry.KeyID == keyID) {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}

// EmergencyRecovery performs emergency key recovery procedures, invoked
// when the emergency council (chain/governance) authorizes a recovery
// after a compromised-key incident.
func (m *DefaultHSMManager) EmergencyRecovery(ctx context.Context, params EmergencyParams) error {
	log.Printf("emergency recovery triggered: %s", params.TriggerReason)

	if time.Now().After(params.ExpiresAt) {
		return fmt.Errorf("emergency recovery request expired")
	}

	for _, keyID := range params.RecoveryKeys {
		if _, err := m.findKeyProvider(ctx, keyID); err != nil {
			log.Printf("failed to find provider for emergency key %s: %v", keyID, err)
			continue
		}
		log.Printf("marking key %s as compromised", keyID)
	}

	for _, contact := range m.config.EmergencyContacts {
		log.Printf("notifying emergency contact: %s", contact)
	}

	m.logAudit("emergency_recovery", "", params.AuthorizedBy, "success", params.TriggerReason)
	return nil
}

func (m *DefaultHSMManager) findKeyProvider(ctx context.Context, keyID string) (HSMProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, provider := range m.providers {
		if _, err := provider.GetKey(ctx, keyID); err == nil {
			return provider, nil
		}
	}
	return nil, fmt.Errorf("key %s not found in any provider", keyID)
}

func (m *DefaultHSMManager) validateFIPSCompliance(providerName string) bool {
	fipsLevels := map[string]int{
		"aws-cloudhsm":   3, // FIPS 140-2 Level 3
		"azure-keyvault": 2, // FIPS 140-2 Level 2
		"pkcs11-hsm":     4,
	}
	level, exists := fipsLevels[providerName]
	return exists && level >= m.config.RequiredFIPSLevel
}

func (m *DefaultHSMManager) setRotationPolicy(keyID string, policy *KeyRotationPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[keyID] = policy
}

func (m *DefaultHSMManager) scheduleKeyDeletion(ctx context.Context, provider HSMProvider, keyID string, delay time.Duration) {
	time.Sleep(delay)
	if err := provider.DeleteKey(ctx, keyID); err != nil {
		log.Printf("failed to delete old key %s: %v", keyID, err)
	} else {
		log.Printf("deleted old key %s after grace period", keyID)
	}
}

func (m *DefaultHSMManager) logAudit(operation, keyID, userID, result, detail string) {
	entry := AuditEntry{
		Timestamp:   time.Now(),
		Operation:   operation,
		KeyID:       keyID,
		UserID:      userID,
		Source:      "hsm-manager",
		Result:      result,
		ErrorDetail: detail,
	}

	m.auditLog = append(m.auditLog, entry)
	if len(m.auditLog) > 10000 {
		m.auditLog = m.auditLog[1000:]
	}
}

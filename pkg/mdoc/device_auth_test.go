package mdoc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

// createTestIACACert creates a test IACA root certificate for device auth tests
func createTestIACACert(t *testing.T) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()

	iacaKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate IACA key: %v", err)
	}

	iacaTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Country:      []string{"SE"},
			Organization: []string{"Test IACA"},
			CommonName:   "Test IACA Root",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(20 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	iacaCertDER, err := x509.CreateCertificate(rand.Reader, iacaTemplate, iacaTemplate, &iacaKey.PublicKey, iacaKey)
	if err != nil {
		t.Fatalf("failed to create IACA certificate: %v", err)
	}

	iacaCert, err := x509.ParseCertificate(iacaCertDER)
	if err != nil {
		t.Fatalf("failed to parse IACA certificate: %v", err)
	}

	return iacaCert, iacaKey
}

// createTestDSCert creates a test Document Signer certificate signed by IACA
func createTestDSCert(t *testing.T, dsKey *ecdsa.PrivateKey, iacaCert *x509.Certificate, iacaKey *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()

	dsTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject: pkix.Name{
			Country:      []string{"SE"},
			Organization: []string{"Test Issuer"},
			CommonName:   "Test Document Signer",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(3 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		BasicConstraintsValid: true,
		IsCA:                  false,
	}

	dsCertDER, err := x509.CreateCertificate(rand.Reader, dsTemplate, iacaCert, &dsKey.PublicKey, iacaKey)
	if err != nil {
		t.Fatalf("failed to create DS certificate: %v", err)
	}

	dsCert, err := x509.ParseCertificate(dsCertDER)
	if err != nil {
		t.Fatalf("failed to parse DS certificate: %v", err)
	}

	return dsCert
}

func TestNewDeviceAuthBuilder(t *testing.T) {
	builder := NewDeviceAuthBuilder(DocType)

	if builder == nil {
		t.Fatal("NewDeviceAuthBuilder() returned nil")
	}

	if builder.docType != DocType {
		t.Errorf("docType = %s, want %s", builder.docType, DocType)
	}
}

func TestDeviceAuthBuilder_WithSessionTranscript(t *testing.T) {
	builder := NewDeviceAuthBuilder(DocType)
	transcript := []byte("test session transcript")

	result := builder.WithSessionTranscript(transcript)

	if result != builder {
		t.Error("WithSessionTranscript() should return builder for chaining")
	}
	if string(builder.sessionTranscript) != string(transcript) {
		t.Error("sessionTranscript not set correctly")
	}
}

func TestDeviceAuthBuilder_WithDeviceKey(t *testing.T) {
	builder := NewDeviceAuthBuilder(DocType)
	key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	result := builder.WithDeviceKey(key)

	if result != builder {
		t.Error("WithDeviceKey() should return builder for chaining")
	}
	if builder.deviceKey == nil {
		t.Error("deviceKey not set")
	}
	if builder.useMAC {
		t.Error("useMAC should be false for signature-based auth")
	}
}

func TestDeviceAuthBuilder_WithSessionKey(t *testing.T) {
	builder := NewDeviceAuthBuilder(DocType)
	sessionKey := make([]byte, 32)
	rand.Read(sessionKey)

	result := builder.WithSessionKey(sessionKey)

	if result != builder {
		t.Error("WithSessionKey() should return builder for chaining")
	}
	if len(builder.sessionKey) != 32 {
		t.Error("sessionKey not set correctly")
	}
	if !builder.useMAC {
		t.Error("useMAC should be true for MAC-based auth")
	}
}

func TestDeviceAuthBuilder_AddDeviceNameSpace(t *testing.T) {
	builder := NewDeviceAuthBuilder(DocType)
	elements := map[string]any{
		"custom_element": "custom_value",
	}

	result := builder.AddDeviceNameSpace(Namespace, elements)

	if result != builder {
		t.Error("AddDeviceNameSpace() should return builder for chaining")
	}
	if builder.deviceNameSpaces[Namespace] == nil {
		t.Error("deviceNameSpaces not set")
	}
	if builder.deviceNameSpaces[Namespace]["custom_element"] != "custom_value" {
		t.Error("element not set correctly")
	}
}

func TestDeviceAuthBuilder_Build_Signature(t *testing.T) {
	deviceKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	transcript := []byte("test session transcript")

	builder := NewDeviceAuthBuilder(DocType).
		WithSessionTranscript(transcript).
		WithDeviceKey(deviceKey)

	deviceSigned, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if deviceSigned == nil {
		t.Fatal("Build() returned nil")
	}

	if len(deviceSigned.DeviceAuth.DeviceSignature) == 0 {
		t.Error("DeviceSignature should be set for signature-based auth")
	}

	if len(deviceSigned.DeviceAuth.DeviceMac) != 0 {
		t.Error("DeviceMac should not be set for signature-based auth")
	}

	if len(deviceSigned.NameSpaces) == 0 {
		t.Error("NameSpaces should be set")
	}
}

func TestDeviceAuthBuilder_Build_MAC(t *testing.T) {
	sessionKey := make([]byte, 32)
	rand.Read(sessionKey)

	transcript := []byte("test session transcript")

	builder := NewDeviceAuthBuilder(DocType).
		WithSessionTranscript(transcript).
		WithSessionKey(sessionKey)

	deviceSigned, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if deviceSigned == nil {
		t.Fatal("Build() returned nil")
	}

	if len(deviceSigned.DeviceAuth.DeviceMac) == 0 {
		t.Error("DeviceMac should be set for MAC-based auth")
	}

	if len(deviceSigned.DeviceAuth.DeviceSignature) != 0 {
		t.Error("DeviceSignature should not be set for MAC-based auth")
	}
}

func TestDeviceAuthBuilder_Build_MissingTranscript(t *testing.T) {
	deviceKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	builder := NewDeviceAuthBuilder(DocType).
		WithDeviceKey(deviceKey)

	_, err := builder.Build()
	if err == nil {
		t.Error("Build() should fail without session transcript")
	}
}

func TestDeviceAuthBuilder_Build_MissingKey(t *testing.T) {
	transcript := []byte("test session transcript")

	builder := NewDeviceAuthBuilder(DocType).
		WithSessionTranscript(transcript)

	_, err := builder.Build()
	if err == nil {
		t.Error("Build() should fail without device key or session key")
	}
}

func TestDeviceAuthBuilder_Build_WithNameSpaces(t *testing.T) {
	deviceKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	transcript := []byte("test session transcript")

	builder := NewDeviceAuthBuilder(DocType).
		WithSessionTranscript(transcript).
		WithDeviceKey(deviceKey).
		AddDeviceNameSpace(Namespace, map[string]any{
			"device_signed_element": "value",
		})

	deviceSigned, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(deviceSigned.NameSpaces) == 0 {
		t.Error("NameSpaces should contain device-signed elements")
	}
}

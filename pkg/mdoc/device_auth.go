// Package mdoc implements the ISO/IEC 18013-5:2021 Mobile Driving Licence (mDL) data model.
package mdoc

import (
	"crypto"
	"errors"
	"fmt"
)

// DeviceAuthentication represents the structure to be signed/MACed for device authentication.
// Per ISO 18013-5:2021 section 9.1.3.
type DeviceAuthentication struct {
	// SessionTranscript is the session transcript bytes
	SessionTranscript []byte
	// DocType is the document type being authenticated
	DocType string
	// DeviceNameSpacesBytes is the CBOR-encoded device-signed namespaces
	DeviceNameSpacesBytes []byte
}

// DeviceAuthBuilder builds the DeviceSigned structure for mdoc authentication.
type DeviceAuthBuilder struct {
	docType           string
	sessionTranscript []byte
	deviceNameSpaces  map[string]map[string]any
	deviceKey         crypto.Signer
	sessionKey        []byte // For MAC-based authentication
	useMAC            bool
}

// NewDeviceAuthBuilder creates a new DeviceAuthBuilder.
func NewDeviceAuthBuilder(docType string) *DeviceAuthBuilder {
	return &DeviceAuthBuilder{
		docType:          docType,
		deviceNameSpaces: make(map[string]map[string]any),
	}
}

// WithSessionTranscript sets the session transcript.
func (b *DeviceAuthBuilder) WithSessionTranscript(transcript []byte) *DeviceAuthBuilder {
	b.sessionTranscript = transcript
	return b
}

// WithDeviceKey sets the device private key for signature-based authentication.
func (b *DeviceAuthBuilder) WithDeviceKey(key crypto.Signer) *DeviceAuthBuilder {
	b.deviceKey = key
	b.useMAC = false
	return b
}

// WithSessionKey sets the session key for MAC-based authentication.
// This is typically derived from the session encryption keys.
func (b *DeviceAuthBuilder) WithSessionKey(key []byte) *DeviceAuthBuilder {
	b.sessionKey = key
	b.useMAC = true
	return b
}

// AddDeviceNameSpace adds device-signed data elements.
func (b *DeviceAuthBuilder) AddDeviceNameSpace(namespace string, elements map[string]any) *DeviceAuthBuilder {
	b.deviceNameSpaces[namespace] = elements
	return b
}

// Build creates the DeviceSigned structure.
func (b *DeviceAuthBuilder) Build() (*DeviceSigned, error) {
	if b.sessionTranscript == nil {
		return nil, errors.New("session transcript is required")
	}

	if !b.useMAC && b.deviceKey == nil {
		return nil, errors.New("device key or session key is required")
	}

	if b.useMAC && len(b.sessionKey) == 0 {
		return nil, errors.New("session key is required for MAC authentication")
	}

	encoder, err := NewCBOREncoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	// Encode device namespaces
	var deviceNameSpacesBytes []byte
	if len(b.deviceNameSpaces) > 0 {
		deviceNameSpacesBytes, err = encoder.Marshal(b.deviceNameSpaces)
		if err != nil {
			return nil, fmt.Errorf("failed to encode device namespaces: %w", err)
		}
	} else {
		// Empty map per spec
		deviceNameSpacesBytes, err = encoder.Marshal(map[string]any{})
		if err != nil {
			return nil, fmt.Errorf("failed to encode empty device namespaces: %w", err)
		}
	}

	// Build DeviceAuthentication structure
	// Per ISO 18013-5: DeviceAuthentication = ["DeviceAuthentication", SessionTranscript, DocType, DeviceNameSpacesBytes]
	deviceAuth := []any{
		"DeviceAuthentication",
		b.sessionTranscript,
		b.docType,
		deviceNameSpacesBytes,
	}

	deviceAuthBytes, err := encoder.Marshal(deviceAuth)
	if err != nil {
		return nil, fmt.Errorf("failed to encode device authentication: %w", err)
	}

	var deviceSigned DeviceSigned
	deviceSigned.NameSpaces = deviceNameSpacesBytes

	if b.useMAC {
		// MAC-based authentication using session key
		mac0, err := b.createDeviceMAC(deviceAuthBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to create device MAC: %w", err)
		}

		macBytes, err := encoder.Marshal(mac0)
		if err != nil {
			return nil, fmt.Errorf("failed to encode device MAC: %w", err)
		}
		deviceSigned.DeviceAuth.DeviceMac = macBytes
	} else {
		// Signature-based authentication using device key
		sign1, err := b.createDeviceSignature(deviceAuthBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to create device signature: %w", err)
		}

		sigBytes, err := encoder.Marshal(sign1)
		if err != nil {
			return nil, fmt.Errorf("failed to encode device signature: %w", err)
		}
		deviceSigned.DeviceAuth.DeviceSignature = sigBytes
	}

	return &deviceSigned, nil
}

// createDeviceSignature creates a COSE_Sign1 for device authentication.
func (b *DeviceAuthBuilder) createDeviceSignature(payload []byte) (*COSESign1, error) {
	algorithm, err := AlgorithmForKey(b.deviceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to determine algorithm: %w", err)
	}

	// Detached signature - payload is external
	return Sign1Detached(payload, b.deviceKey, algorithm, nil, nil)
}

// createDeviceMAC creates a COSE_Mac0 for device authentication.
func (b *DeviceAuthBuilder) createDeviceMAC(payload []byte) (*COSEMac0, error) {
	// Use HMAC-SHA256 for MAC authentication
	return Mac0(payload, b.sessionKey, AlgorithmHMAC256, nil)
}

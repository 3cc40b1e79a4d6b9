package sdjwtvc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildCredential tests the complete credential building process
func TestBuildCredential(t *testing.T) {
	// Generate test ECDSA key
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	// Create test VCTM
	personalNumber := "personal_administrative_number"
	issuingAuth := "issuing_authority"
	vctm := &VCTM{
		VCT: "TestCredential",
		Claims: []Claim{
			{Path: []*string{&personalNumber}, SD: "always"},
			{Path: []*string{&issuingAuth}, SD: "always"},
		},
	}

	holderJWK := map[string]any{
		"kty": "EC",
		"crv": "P-256",
		"kid": "holder-key-id",
		"x":   "f83OJ3D2xF1c4hXhN3k1j5x5mX5Z5x5Z5x5Z5x5Z5x5",
		"y":   "x_FEzRu9mX5Z5x5Z5x5Z5x5Z5x5Z5x5Z5x5Z5x5Z5x5Z",
	}

	documentData := []byte(`{
		"personal_administrative_number": "123456789",
		"issuing_authority": {
			"id": "TEST",
			"name": "Test Authority"
		},
		"issuing_country": "SE"
	}`)

	client := New()
	token, err := client.BuildCredential(
		"https://issuer.example.com",
		"issuer-key-1",
		privateKey,
		"TestCredential",
		documentData,
		holderJWK,
		vctm,
		nil, // Use default options
	)

	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// Verify token structure
	parts := splitToken(token)
	assert.GreaterOrEqual(t, len(parts), 2, "token should have at least header and payload")

	// Decode header
	headerStr, err := Base64Decode(parts[0])
	require.NoError(t, err)

	var header map[string]any
	err = json.Unmarshal([]byte(headerStr), &header)
	require.NoError(t, err)

	// Verify header claims - per SD-JWT VC draft-13, typ is now "dc+sd-jwt"
	// (also accepts "vc+sd-jwt" during transition period)
	assert.Equal(t, "dc+sd-jwt", header["typ"])
	assert.Equal(t, "ES256", header["alg"])
	assert.Equal(t, "issuer-key-1", header["kid"])
	assert.NotEmpty(t, header["vctm"])

	// Decode payload (part before first ~)
	payloadParts := splitOnTilde(parts[1])
	payloadStr, err := Base64Decode(payloadParts[0])
	require.NoError(t, err)

	var payload map[string]any
	err = json.Unmarshal([]byte(payloadStr), &payload)
	require.NoError(t, err)

	// Verify JWT claims
	assert.Equal(t, "https://issuer.example.com", payload["iss"])
	assert.Equal(t, "TestCredential", payload["vct"])
	assert.Equal(t, "sha-256", payload["_sd_alg"])
	assert.NotEmpty(t, payload["jti"])
	assert.NotEmpty(t, payload["nbf"])
	assert.NotEmpty(t, payload["exp"])

	// Verify cnf claim
	cnf, ok := payload["cnf"].(map[string]any)
	require.True(t, ok)
	jwk, ok := cnf["jwk"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "holder-key-id", jwk["kid"])

	// Verify selective disclosures
	sd, ok := payload["_sd"].([]any)
	require.True(t, ok)
	assert.Greater(t, len(sd), 0, "should have selective disclosures")

	// Verify token has disclosures (parts after ~)
	assert.Greater(t, len(parts), 2, "token should have disclosure parts")
}

func TestBuildCredential_AlgorithmSelection(t *testing.T) {
	tests := []struct {
		name        string
		keyType     string // "ecdsa" or "rsa"
		curve       elliptic.Curve
		rsaKeySize  int
		expectedAlg string
	}{
		// ECDSA tests
		{
			name:        "ECDSA P-256 uses ES256",
			keyType:     "ecdsa",
			curve:       elliptic.P256(),
			expectedAlg: "ES256",
		},
		{
			name:        "ECDSA P-384 uses ES384",
			keyType:     "ecdsa",
			curve:       elliptic.P384(),
			expectedAlg: "ES384",
		},
		{
			name:        "ECDSA P-521 uses ES512",
			keyType:     "ecdsa",
			curve:       elliptic.P521(),
			expectedAlg: "ES512",
		},
		// RSA tests
		{
			name:        "RSA 2048 uses RS256",
			keyType:     "rsa",
			rsaKeySize:  2048,
			expectedAlg: "RS256",
		},
		{
			name:        "RSA 3072 uses RS384",
			keyType:     "rsa",
			rsaKeySize:  3072,
			expectedAlg: "RS384",
		},
		{
			name:        "RSA 4096 uses RS512",
			keyType:     "rsa",
			rsaKeySize:  4096,
			expectedAlg: "RS512",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var privateKey any
			var err error
			var jwkType string

			// Generate appropriate key type
			if tt.keyType == "ecdsa" {
				privateKey, err = ecdsa.GenerateKey(tt.curve, rand.Reader)
				jwkType = "EC"
			} else {
				privateKey, err = rsa.GenerateKey(rand.Reader, tt.rsaKeySize)
				jwkType = "RSA"
			}
			require.NoError(t, err)

			testClaim := "test_claim"
			vctm := &VCTM{
				VCT:    "TestCredential",
				Claims: []Claim{{Path: []*string{&testClaim}, SD: "always"}},
			}

			client := New()
			token, err := client.BuildCredential(
				"https://issuer.example.com",
				"key-1",
				privateKey,
				"TestCredential",
				[]byte(`{"test_claim": "value"}`),
				map[string]any{"kty": jwkType},
				vctm,
				nil, // Use default options
			)

			require.NoError(t, err)

			// Extract and verify algorithm
			parts := splitToken(token)
			headerStr, err := Base64Decode(parts[0])
			require.NoError(t, err)

			var header map[string]any
			err = json.Unmarshal([]byte(headerStr), &header)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedAlg, header["alg"])
		})
	}
}

func TestBuildCredential_InvalidJSON(t *testing.T) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	testClaim := "test"
	vctm := &VCTM{
		VCT:    "TestCredential",
		Claims: []Claim{{Path: []*string{&testClaim}, SD: "always"}},
	}

	client := New()
	_, err = client.BuildCredential(
		"https://issuer.example.com",
		"key-1",
		privateKey,
		"TestCredential",
		[]byte(`{invalid json`),
		map[string]any{"kty": "EC"},
		vctm,
		nil, // Use default options
	)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal document data")
}

func TestBuildCredential_VCTMEncoding(t *testing.T) {
	tests := []struct {
		name       string
		keyType    string // "ecdsa" or "rsa"
		curve      elliptic.Curve
		rsaKeySize int
	}{
		{
			name:    "ECDSA P-256",
			keyType: "ecdsa",
			curve:   elliptic.P256(),
		},
		{
			name:    "ECDSA P-384",
			keyType: "ecdsa",
			curve:   elliptic.P384(),
		},
		{
			name:       "RSA 2048",
			keyType:    "rsa",
			rsaKeySize: 2048,
		},
		{
			name:       "RSA 4096",
			keyType:    "rsa",
			rsaKeySize: 4096,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var privateKey any
			var err error
			var jwkType string

			// Generate appropriate key type
			if tt.keyType == "ecdsa" {
				privateKey, err = ecdsa.GenerateKey(tt.curve, rand.Reader)
				jwkType = "EC"
			} else {
				privateKey, err = rsa.GenerateKey(rand.Reader, tt.rsaKeySize)
				jwkType = "RSA"
			}
			require.NoError(t, err)

			testClaim := "test_claim"
			vctm := &VCTM{
				VCT:    "TestCredential",
				Claims: []Claim{{Path: []*string{&testClaim}, SD: "always"}},
			}

			client := New()
			token, err := client.BuildCredential(
				"https://issuer.example.com",
				"key-1",
				privateKey,
				"TestCredential",
				[]byte(`{"test_claim": "value"}`),
				map[string]any{"kty": jwkType},
				vctm,
				nil, // Use default options
			)

			require.NoError(t, err)

			// Extract header and verify VCTM encoding
			parts := splitToken(token)
			headerStr, err := Base64Decode(parts[0])
			require.NoError(t, err)

			var header map[string]any
			err = json.Unmarshal([]byte(headerStr), &header)
			require.NoError(t, err)

			vctmEncoded, ok := header["vctm"]
			assert.True(t, ok, "vctm should be present in header")
			assert.NotEmpty(t, vctmEncoded, "vctm should not be empty")
		})
	}
}

func TestGetSigningMethodFromKey_UnknownKeyType(t *testing.T) {
	// Test with a non-crypto key type
	signingMethod, algName := getSigningMethodFromKey("not a key")

	// Should default to ES256
	assert.NotNil(t, signingMethod)
	assert.Equal(t, "ES256", algName)
}

func TestGetSigningMethodFromKey_UnknownECDSACurve(t *testing.T) {
	// P-224 has no JWS algorithm in the key-to-algorithm mapping
	privateKey, err := ecdsa.GenerateKey(elliptic.P224(), rand.Reader)
	require.NoError(t, err)

	// Test that it defaults to ES256 for unknown curves
	signingMethod, algName := getSigningMethodFromKey(privateKey)
	assert.NotNil(t, signingMethod)
	assert.Equal(t, "ES256", algName)
}

// Helper function to split token by dots (JWT structure)
func splitToken(token string) []string {
	parts := []string{}
	current := ""
	for _, ch := range token {
		if ch == '.' {
			parts = append(parts, current)
			current = ""
		} else if ch == '~' {
			// Split on tilde for disclosures
			if current != "" {
				parts = append(parts, current)
			}
			current = ""
		} else {
			current += string(ch)
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

// Helper to split on tilde
func splitOnTilde(s string) []string {
	parts := []string{}
	current := ""
	for _, ch := range s {
		if ch == '~' {
			parts = append(parts, current)
			current = ""
		} else {
			current += string(ch)
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

// containsSubstring reports whether s contains substr.
func containsSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestBuildCredentialWithOptions_DefaultOptions(t *testing.T) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	client := &Client{}

	issuer := "https://issuer.example.com"
	kid := "key-1"
	vct := "https://credentials.example.com/identity_credential"

	mockName := "name"
	vctm := &VCTM{
		Claims: []Claim{
			{
				Path: []*string{&mockName},
				SD:   "always",
			},
		},
	}

	documentData := []byte(`{"name":"John Doe","age":30}`)
	holderJWK := map[string]any{
		"kty": "EC",
		"crv": "P-256",
	}

	t.Run("nil_options_uses_defaults", func(t *testing.T) {
		token, err := client.BuildCredential(
			issuer, kid, privateKey, vct, documentData, holderJWK, vctm, nil,
		)
		if err != nil {
			t.Fatalf("BuildCredentialWithOptions failed: %v", err)
		}
		if token == "" {
			t.Error("Expected non-empty token")
		}
	})

	t.Run("zero_expiration_days_uses_default", func(t *testing.T) {
		opts := &CredentialOptions{
			DecoyDigests:   0,
			ExpirationDays: 0, // Should default to 365
		}
		token, err := client.BuildCredential(
			issuer, kid, privateKey, vct, documentData, holderJWK, vctm, opts,
		)
		if err != nil {
			t.Fatalf("BuildCredentialWithOptions failed: %v", err)
		}
		if token == "" {
			t.Error("Expected non-empty token")
		}
	})

	t.Run("custom_expiration_days", func(t *testing.T) {
		opts := &CredentialOptions{
			DecoyDigests:   2,
			ExpirationDays: 90,
		}
		token, err := client.BuildCredential(
			issuer, kid, privateKey, vct, documentData, holderJWK, vctm, opts,
		)
		if err != nil {
			t.Fatalf("BuildCredentialWithOptions failed: %v", err)
		}
		if token == "" {
			t.Error("Expected non-empty token")
		}
	})

	t.Run("invalid_json_data", func(t *testing.T) {
		invalidData := []byte(`{invalid json}`)
		_, err := client.BuildCredential(
			issuer, kid, privateKey, vct, invalidData, holderJWK, vctm, nil,
		)
		if err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})
}

func TestGetSigningMethodFromKey_AllKeyTypes(t *testing.T) {
	t.Run("RSA_2048", func(t *testing.T) {
		key, _ := rsa.GenerateKey(rand.Reader, 2048)
		method, alg := getSigningMethodFromKey(key)
		if alg != "RS256" {
			t.Errorf("Expected RS256, got %s", alg)
		}
		if method == nil {
			t.Error("Expected non-nil signing method")
		}
	})

	t.Run("RSA_3072", func(t *testing.T) {
		key, _ := rsa.GenerateKey(rand.Reader, 3072)
		method, alg := getSigningMethodFromKey(key)
		if alg != "RS384" {
			t.Errorf("Expected RS384, got %s", alg)
		}
		if method == nil {
			t.Error("Expected non-nil signing method")
		}
	})

	t.Run("RSA_4096", func(t *testing.T) {
		key, _ := rsa.GenerateKey(rand.Reader, 4096)
		method, alg := getSigningMethodFromKey(key)
		if alg != "RS512" {
			t.Errorf("Expected RS512, got %s", alg)
		}
		if method == nil {
			t.Error("Expected non-nil signing method")
		}
	})

	t.Run("ECDSA_P256", func(t *testing.T) {
		key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		method, alg := getSigningMethodFromKey(key)
		if alg != "ES256" {
			t.Errorf("Expected ES256, got %s", alg)
		}
		if method == nil {
			t.Error("Expected non-nil signing method")
		}
	})

	t.Run("ECDSA_P384", func(t *testing.T) {
		key, _ := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		method, alg := getSigningMethodFromKey(key)
		if alg != "ES384" {
			t.Errorf("Expected ES384, got %s", alg)
		}
		if method == nil {
			t.Error("Expected non-nil signing method")
		}
	})

	t.Run("ECDSA_P521", func(t *testing.T) {
		key, _ := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
		method, alg := getSigningMethodFromKey(key)
		if alg != "ES512" {
			t.Errorf("Expected ES512, got %s", alg)
		}
		if method == nil {
			t.Error("Expected non-nil signing method")
		}
	})

	t.Run("unknown_key_type", func(t *testing.T) {
		method, alg := getSigningMethodFromKey("invalid-key")
		if alg != "ES256" {
			t.Errorf("Expected ES256 default, got %s", alg)
		}
		if method == nil {
			t.Error("Expected non-nil signing method")
		}
	})
}

func TestBuildCredentialWithOptions_VCTMEncoding(t *testing.T) {
	privateKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	client := &Client{}

	name := "name"
	vctm := &VCTM{
		VCT:         "https://example.com/credential",
		Name:        "Identity Credential",
		Description: "A credential for identity verification",
		Claims: []Claim{
			{
				Path: []*string{&name},
				SD:   "always",
			},
		},
	}

	documentData := []byte(`{"name":"Alice","age":25}`)
	holderJWK := map[string]any{"kty": "EC", "crv": "P-256"}

	t.Run("vctm_encoded_in_header", func(t *testing.T) {
		token, err := client.BuildCredential(
			"https://issuer.example.com",
			"key-1",
			privateKey,
			"https://example.com/credential",
			documentData,
			holderJWK,
			vctm,
			nil,
		)
		if err != nil {
			t.Fatalf("BuildCredentialWithOptions failed: %v", err)
		}

		if token == "" {
			t.Error("Expected non-empty token")
		}

		if !containsSubstring(token, "~") {
			t.Error("Expected token to contain ~ separators")
		}
	})
}

func TestBuildCredentialWithOptions_VCTMEncodesWithoutError(t *testing.T) {
	privateKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	client := &Client{}

	name := "name"
	vctm := &VCTM{
		VCT:  "test",
		Name: "test",
		Claims: []Claim{
			{
				Path: []*string{&name},
				SD:   "always",
			},
		},
	}

	documentData := []byte(`{"name":"test"}`)
	holderJWK := map[string]any{"kty": "EC"}

	_, err := client.BuildCredential(
		"issuer",
		"kid",
		privateKey,
		"vct",
		documentData,
		holderJWK,
		vctm,
		nil,
	)

	// A VCTM of plain fields always JSON-encodes, so the build succeeds.
	if err != nil {
		t.Fatalf("BuildCredential failed: %v", err)
	}
}

func TestSign(t *testing.T) {
	t.Run("sign_with_rsa", func(t *testing.T) {
		privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("Failed to generate RSA key: %v", err)
		}

		header := map[string]any{
			"typ": "JWT",
			"alg": "RS256",
		}
		payload := map[string]any{
			"iss": "test",
			"sub": "user123",
		}

		_, algName := getSigningMethodFromKey(privateKey)
		signingMethod, _ := getSigningMethodFromKey(privateKey)

		token, err := Sign(header, payload, signingMethod, privateKey)
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}
		if token == "" {
			t.Error("Expected non-empty signed token")
		}
		if algName != "RS256" {
			t.Errorf("Expected RS256, got %s", algName)
		}
	})

	t.Run("sign_with_invalid_payload", func(t *testing.T) {
		privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			t.Fatalf("Failed to generate key: %v", err)
		}

		header := map[string]any{
			"typ": "JWT",
			"alg": "ES256",
		}

		payload := map[string]any{
			"iss": make(chan int),
		}

		signingMethod, _ := getSigningMethodFromKey(privateKey)

		_, err = Sign(header, payload, signingMethod, privateKey)
		if err == nil {
			t.Error("Expected error for non-serializable payload")
		}
	})
}

func TestSign_JSONMarshalError(t *testing.T) {
	privateKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	header := map[string]any{
		"typ":     "JWT",
		"channel": make(chan int), // Cannot be marshaled
	}
	payload := map[string]any{
		"iss": "test",
	}

	signingMethod, _ := getSigningMethodFromKey(privateKey)

	_, err := Sign(header, payload, signingMethod, privateKey)
	if err == nil {
		t.Error("Expected error for unmarshalable header")
	}
}

func TestBuildCredentialWithOptions_SignError(t *testing.T) {
	client := &Client{}

	name := "name"
	vctm := &VCTM{
		Claims: []Claim{
			{
				Path: []*string{&name},
				SD:   "always",
			},
		},
	}

	documentData := []byte(`{"name":"test"}`)
	holderJWK := map[string]any{"kty": "EC"}

	invalidKey := "not-a-key"

	_, err := client.BuildCredential(
		"issuer",
		"kid",
		invalidKey,
		"vct",
		documentData,
		holderJWK,
		vctm,
		nil,
	)

	if err == nil {
		t.Error("Expected error when signing with invalid key")
	}
}

func TestVCTMEncode(t *testing.T) {
	t.Run("encode_complex_vctm", func(t *testing.T) {
		name := "name"
		age := "age"

		vctm := &VCTM{
			VCT:         "https://example.com/credential",
			Name:        "Test Credential",
			Description: "A test credential",
			Display: []VCTMDisplay{
				{
					Lang: "en",
					Name: "Test",
				},
			},
			Claims: []Claim{
				{
					Path: []*string{&name},
					SD:   "always",
				},
				{
					Path: []*string{&age},
					SD:   "never",
				},
			},
		}

		encoded, err := vctm.Encode()
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if len(encoded) == 0 {
			t.Error("Expected non-empty encoded result")
		}

		if len(encoded[0]) == 0 {
			t.Error("Expected non-empty encoded string")
		}
	})
}

package androidattest_test

import (
	"testing"

	"github.com/eudiwallet/core/pkg/androidattest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttestationVersion(t *testing.T) {
	v, err := androidattest.ParseAttestationVersion(200)
	require.NoError(t, err)
	assert.Equal(t, androidattest.AttestationV200, v)

	_, err = androidattest.ParseAttestationVersion(99)
	require.Error(t, err)
}

func TestParseKeyMintVersion(t *testing.T) {
	v, err := androidattest.ParseKeyMintVersion(300)
	require.NoError(t, err)
	assert.Equal(t, androidattest.KeyMintV300, v)

	_, err = androidattest.ParseKeyMintVersion(1)
	require.Error(t, err)
}

func TestParseKeyPurposeSet(t *testing.T) {
	set, err := androidattest.ParseKeyPurposeSet([]uint32{2, 3})
	require.NoError(t, err)
	_, hasSign := set[androidattest.PurposeSign]
	_, hasVerify := set[androidattest.PurposeVerify]
	assert.True(t, hasSign)
	assert.True(t, hasVerify)

	_, err = androidattest.ParseKeyPurposeSet([]uint32{99})
	require.Error(t, err)
}

func TestSecurityLevelVerify(t *testing.T) {
	assert.NoError(t, androidattest.SecurityLevelTrustedEnvironment.Verify(false))
	assert.NoError(t, androidattest.SecurityLevelStrongBox.Verify(false))
	assert.Error(t, androidattest.SecurityLevelSoftware.Verify(false))
	assert.NoError(t, androidattest.SecurityLevelSoftware.Verify(true))
}

func TestHardwareAuthenticatorTypePreservesUnknownBits(t *testing.T) {
	h := androidattest.HardwareAuthenticatorType(1<<0 | 1<<5)
	assert.True(t, h.HasPassword())
	assert.False(t, h.HasFingerprint())
}

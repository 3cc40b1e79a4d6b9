package mdocmodel_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/eudiwallet/core/pkg/attributes"
	"github.com/eudiwallet/core/pkg/mdoc"
	"github.com/eudiwallet/core/pkg/mdocmodel"
	"github.com/stretchr/testify/require"
)

type fakeMetadata struct {
	vct   string
	paths [][]string
}

func (f fakeMetadata) VCT() string             { return f.vct }
func (f fakeMetadata) ClaimKeyPaths() [][]string { return f.paths }

func selfSignedCert(t *testing.T, key *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-issuer"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestBuildMSOThenDigestsCoverEveryNamespaceEntry(t *testing.T) {
	tree := attributes.New()
	tree.Set("bsn", attributes.NewSingle(attributes.Text("999999999")))
	tree.Set("given_name", attributes.NewSingle(attributes.Text("Willeke Liselotte")))

	metadata := fakeMetadata{vct: "urn:eudi:pid:nl:1", paths: [][]string{{"bsn"}, {"given_name"}}}
	require.NoError(t, tree.Validate(metadata))

	nameSpaces := mdocmodel.BuildIssuerNameSpaces("urn:eudi:pid:nl:1", tree)
	require.Len(t, nameSpaces.Keys(), 1)

	issuerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	deviceKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	deviceCOSEKey, err := mdoc.NewCOSEKeyFromECDSA(&deviceKey.PublicKey)
	require.NoError(t, err)

	signed, err := mdocmodel.BuildMSO(mdocmodel.SigningRequest{
		DocType:    "urn:eudi:pid:nl:1",
		ValidFrom:  time.Now(),
		ValidUntil: time.Now().Add(24 * time.Hour),
		DeviceKey:  deviceCOSEKey,
		SignerKey:  issuerKey,
		CertChain:  []*x509.Certificate{selfSignedCert(t, issuerKey)},
		NameSpaces: nameSpaces,
	})
	require.NoError(t, err)
	require.NotNil(t, signed.MSO)
	require.Contains(t, signed.IssuerNameSpaces, "urn:eudi:pid:nl:1")
	require.Len(t, signed.IssuerNameSpaces["urn:eudi:pid:nl:1"], 2)

	encoder, err := mdoc.NewCBOREncoder()
	require.NoError(t, err)
	var mso mdoc.MobileSecurityObject
	require.NoError(t, encoder.Unmarshal(signed.MSO.Payload, &mso))
	require.Len(t, mso.ValueDigests["urn:eudi:pid:nl:1"], 2)
}

func TestParseIssuerNameSpacesRebuildsTree(t *testing.T) {
	tree := attributes.New()
	tree.Set("bsn", attributes.NewSingle(attributes.Text("999999999")))
	metadata := fakeMetadata{vct: "urn:eudi:pid:nl:1", paths: [][]string{{"bsn"}}}
	require.NoError(t, tree.Validate(metadata))

	nameSpaces := mdocmodel.BuildIssuerNameSpaces("urn:eudi:pid:nl:1", tree)
	rebuilt, err := mdocmodel.ParseIssuerNameSpaces(metadata, nameSpaces)
	require.NoError(t, err)

	got, ok := rebuilt.Get("bsn")
	require.True(t, ok)
	require.Equal(t, attributes.Text("999999999"), got.Single)
}

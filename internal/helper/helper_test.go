package helper

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	for input, want := range map[string][]byte{
		"8286":          {0x82, 0x86},
		"0x8286":        {0x82, 0x86},
		"82 86\n84\t41": {0x82, 0x86, 0x84, 0x41},
		"  0X0f  ":      {0x0f},
		"":              {},
	} {
		data, err := ParseHex(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, data, input)
	}

	_, err := ParseHex("828")
	assert.Error(t, err)

	_, err = ParseHex("zz")
	assert.Error(t, err)
}

func TestReadHexLimit(t *testing.T) {
	data, err := ReadHex(strings.NewReader("8286"), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x86}, data)

	_, err = ReadHex(strings.NewReader("828684"), 4)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestLoadCertificatesMissingFiles(t *testing.T) {
	_, err := LoadCertificates("missing.crt", "missing.key")
	assert.Error(t, err)
}

func TestGenerateCertificate(t *testing.T) {
	certPEM, keyPEM, err := GenerateCertificate("hpack", []string{"127.0.0.1", "localhost"}, time.Hour)
	require.NoError(t, err)

	block, _ := pem.Decode(certPEM)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.IPAddresses[0].String())
	assert.NoError(t, cert.VerifyHostname("localhost"))

	dir := t.TempDir()
	certPath, keyPath := filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))

	certs, err := LoadCertificates(certPath, keyPath)
	require.NoError(t, err)
	assert.Len(t, certs, 1)

	_, _, err = GenerateCertificate("hpack", nil, time.Hour)
	assert.Error(t, err)
}

package transport

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// CertConfig names the PEM files and TLS policy a TLS overlay server or
// client loads its identity and trust material from.
type CertConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string
	// KeyPassword decrypts KeyFile when it holds a password-protected PEM
	// private key (an "ENCRYPTED" PEM block, the legacy PKCS#1 form
	// openssl still emits with -des3/-aes256). Left empty for a plain key.
	KeyPassword string

	// MinVersion/MaxVersion bound the negotiated TLS version. Zero values
	// fall back to ServerTLSConfig/ClientTLSConfig's defaults below.
	MinVersion uint16
	MaxVersion uint16

	// ClientAuth controls whether and how a server demands a client
	// certificate (mutual TLS). Zero value is tls.NoClientCert.
	ClientAuth tls.ClientAuthType
	// ClientCAs is the pool a server verifies client certificates
	// against when ClientAuth requires one. Ignored when ClientAuth is
	// tls.NoClientCert.
	ClientCAs *x509.CertPool
}

// LoadCertificates loads the server's own certificate/key pair, decrypting
// KeyFile first if KeyPassword is set.
func (c *CertConfig) LoadCertificates() ([]tls.Certificate, error) {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil, fmt.Errorf("transport: certfile and keyfile must be specified")
	}
	keyPEM, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read key file: %w", err)
	}
	if c.KeyPassword != "" {
		keyPEM, err = decryptPEMKey(keyPEM, c.KeyPassword)
		if err != nil {
			return nil, fmt.Errorf("transport: failed to decrypt key file: %w", err)
		}
	}
	certPEM, err := os.ReadFile(c.CertFile)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read cert file: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to load certificates: %w", err)
	}
	return []tls.Certificate{cert}, nil
}

// decryptPEMKey decrypts the first PEM block in keyPEM using password and
// re-encodes it as a plain (unencrypted) PEM block, which tls.X509KeyPair
// requires. x509.DecryptPEMBlock only understands the legacy PKCS#1
// "DEK-Info" encryption header classic openssl genrsa -des3 produces;
// PKCS#8-encrypted keys (openssl genpkey) are out of scope.
func decryptPEMKey(keyPEM []byte, password string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("transport: no PEM block found in key file")
	}
	//lint:ignore SA1019 x509.IsEncryptedPEMBlock/DecryptPEMBlock are the
	// only standard-library support for this legacy format.
	if !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}
	der, err := x509.DecryptPEMBlock(block, []byte(password))
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}

// ServerTLSConfig returns a TLS configuration carrying certificates,
// suitable for NewTLSServer. minVersion/maxVersion of 0 default to
// TLS 1.3 only; clientAuth/clientCAs configure mutual TLS when clientAuth
// is not tls.NoClientCert. HTTP/2 is out of scope, so NextProtos
// advertises only http/1.1.
func ServerTLSConfig(certificates []tls.Certificate, c *CertConfig) *tls.Config {
	minVersion, maxVersion := uint16(tls.VersionTLS13), uint16(tls.VersionTLS13)
	var clientAuth tls.ClientAuthType
	var clientCAs *x509.CertPool
	if c != nil {
		if c.MinVersion != 0 {
			minVersion = c.MinVersion
		}
		if c.MaxVersion != 0 {
			maxVersion = c.MaxVersion
		}
		clientAuth = c.ClientAuth
		clientCAs = c.ClientCAs
	}
	return &tls.Config{
		Certificates: certificates,
		MinVersion:   minVersion,
		MaxVersion:   maxVersion,
		ClientAuth:   clientAuth,
		ClientCAs:    clientCAs,
		CipherSuites: []uint16{
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		NextProtos: []string{"http/1.1"},
	}
}

// ClientTLSConfig builds a tls.Config for NewTLSSession. If
// caFile is non-empty, it is used as the sole trust root instead of the
// system pool. minVersion/maxVersion of 0 default to TLS 1.2 through 1.3.
func ClientTLSConfig(caFile string, minVersion, maxVersion uint16) (*tls.Config, error) {
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	if maxVersion == 0 {
		maxVersion = tls.VersionTLS13
	}
	cfg := &tls.Config{
		MinVersion: minVersion,
		MaxVersion: maxVersion,
	}
	if caFile == "" {
		return cfg, nil
	}
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("transport: failed to parse CA certificate")
	}
	cfg.RootCAs = pool
	return cfg, nil
}

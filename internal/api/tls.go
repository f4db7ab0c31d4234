package api

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"sync"
)

const (
	EnvTLSCert = "GRIDRUNNER_TLS_CERT"
	EnvTLSKey  = "GRIDRUNNER_TLS_KEY"
)

// ErrTLSIncomplete means only one of the certificate and key paths is set.
var ErrTLSIncomplete = errors.New("TLS needs both " + EnvTLSCert + " and " + EnvTLSKey)

// TLSFiles names the PEM certificate chain and private key served by the API.
type TLSFiles struct {
	Cert string
	Key  string
}

var (
	tlsFiles *TLSFiles
	tlsMu    sync.RWMutex
)

// InitTLS reads the certificate paths from the environment. With neither
// set the API serves plain HTTP.
func InitTLS() error {
	cert, key := os.Getenv(EnvTLSCert), os.Getenv(EnvTLSKey)

	var files *TLSFiles
	switch {
	case cert == "" && key == "":
	case cert == "" || key == "":
		return ErrTLSIncomplete
	default:
		files = &TLSFiles{Cert: cert, Key: key}
	}
	setTLSFiles(files)
	return nil
}

func setTLSFiles(f *TLSFiles) {
	tlsMu.Lock()
	tlsFiles = f
	tlsMu.Unlock()
}

func IsTLSEnabled() bool {
	tlsMu.RLock()
	defer tlsMu.RUnlock()
	return tlsFiles != nil
}

// serverTLSConfig loads the key pair. It returns nil, nil when TLS is off.
func serverTLSConfig() (*tls.Config, error) {
	tlsMu.RLock()
	files := tlsFiles
	tlsMu.RUnlock()
	if files == nil {
		return nil, nil
	}

	pair, err := tls.LoadX509KeyPair(files.Cert, files.Key)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair %s: %w", files.Cert, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

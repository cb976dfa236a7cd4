package sdkbuild

import (
	"crypto/tls"
	"net/http"
	"time"
)

func newHttpClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	// GitHub release downloads redirect to a CDN that can be slow to handshake
	transport.TLSHandshakeTimeout = 30 * time.Second

	return &http.Client{
		Transport: transport,
		Timeout:   15 * time.Minute, // whole framework archives are streamed through the hash
	}
}

// Package capability decides whether voice capture can be offered to a
// client.
package capability

import (
	"net"
	"net/http"
	"strings"
)

// Report is the answer to a capability query.
type Report struct {
	Supported bool     `json:"supported"`
	Secure    bool     `json:"secure"`
	Languages []string `json:"languages"`
}

// Probe checks a request for the two conditions capture needs: a
// recognition backend and a secure context. Browsers only expose the
// microphone to pages served over TLS or from a loopback host.
type Probe struct {
	// Backend reports whether a recognizer can be created.
	Backend bool
	// Languages lists the languages with their own punctuation tables.
	Languages []string
}

// Check evaluates r.
func (p Probe) Check(r *http.Request) Report {
	secure := SecureContext(r)
	return Report{
		Supported: p.Backend && secure,
		Secure:    secure,
		Languages: p.Languages,
	}
}

// SecureContext reports whether r arrived over TLS, was forwarded from a
// TLS terminator, or targets a loopback host.
func SecureContext(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return isLoopback(r.Host)
}

func isLoopback(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

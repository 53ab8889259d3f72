package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

func selfSignedCert(t *testing.T) tls.Certificate {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}
}

func serveTLSOnce(t *testing.T, cert tls.Certificate, handle func(net.Conn)) string {
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatalf("tls.Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handle(conn)
	}()
	return ln.Addr().String()
}

func TestSecureHandshakeAndReadWriteWithTrustedCA(t *testing.T) {
	cert := selfSignedCert(t)
	pool := x509.NewCertPool()
	pool.AddCert(cert.Leaf)

	addr := serveTLSOnce(t, cert, func(conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 4)
		conn.Read(buf)
		conn.Write([]byte("ack\n"))
	})

	tr := NewSecure(TLSConfig{ServerName: "localhost", RootCAs: pool})
	if err := tr.Connect(addr, 2*time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	if err := tr.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if err := tr.WriteAll([]byte("ping")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	got, err := tr.ReadUntil([]byte("\n"))
	if err != nil {
		t.Fatalf("ReadUntil: %v", err)
	}
	if string(got) != "ack\n" {
		t.Fatalf("ReadUntil() = %q, want %q", got, "ack\n")
	}
}

func TestSecureHandshakeFailsWithUntrustedCA(t *testing.T) {
	cert := selfSignedCert(t)
	addr := serveTLSOnce(t, cert, func(conn net.Conn) {
		defer conn.Close()
		conn.(*tls.Conn).Handshake()
	})

	// no RootCAs supplied and InsecureSkipVerify left false: the self-signed
	// leaf must be rejected against the system trust store.
	tr := NewSecure(TLSConfig{ServerName: "localhost"})
	if err := tr.Connect(addr, 2*time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	if err := tr.Handshake(); err == nil {
		t.Fatal("expected Handshake to fail against an untrusted certificate")
	}
}

func TestSecureHandshakeSkipsVerifyWhenConfigured(t *testing.T) {
	cert := selfSignedCert(t)
	addr := serveTLSOnce(t, cert, func(conn net.Conn) {
		defer conn.Close()
		conn.(*tls.Conn).Handshake()
	})

	tr := NewSecure(TLSConfig{ServerName: "localhost", InsecureSkipVerify: true})
	if err := tr.Connect(addr, 2*time.Second); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	if err := tr.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
}

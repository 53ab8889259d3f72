package transport

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"time"
)

// TLSConfig configures the secure transport. InsecureSkipVerify defaults
// to false: unlike the original source (which verified no certificate),
// this client verifies the peer by default and requires an explicit opt
// out, per spec §9 Open Question ii.
type TLSConfig struct {
	ServerName         string
	InsecureSkipVerify bool
	RootCAs            *x509.CertPool // nil means the system trust store
}

// Secure is the TLS-over-TCP api.Transport implementation. Handshake
// performs the TLS negotiation; Connect only dials the raw TCP socket.
type Secure struct {
	cfg  TLSConfig
	raw  net.Conn
	conn *tls.Conn
	br   *bufio.Reader
}

// NewSecure constructs an unconnected TLS transport using cfg.
func NewSecure(cfg TLSConfig) *Secure {
	return &Secure{cfg: cfg}
}

func (s *Secure) Connect(endpoint string, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", endpoint)
	if err != nil {
		return err
	}
	s.raw = conn
	return nil
}

func (s *Secure) Handshake() error {
	tlsCfg := &tls.Config{
		ServerName:         s.cfg.ServerName,
		InsecureSkipVerify: s.cfg.InsecureSkipVerify,
		RootCAs:            s.cfg.RootCAs,
	}
	conn := tls.Client(s.raw, tlsCfg)
	if err := conn.Handshake(); err != nil {
		return err
	}
	s.conn = conn
	s.br = bufio.NewReader(conn)
	return nil
}

func (s *Secure) ReadUntil(delim []byte) ([]byte, error) {
	return readUntil(s.br, delim)
}

func (s *Secure) ReadExactly(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Secure) ReadSome() ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := s.br.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (s *Secure) WriteAll(data []byte) error {
	for len(data) > 0 {
		n, err := s.conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (s *Secure) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	if s.raw != nil {
		return s.raw.Close()
	}
	return nil
}

package transport

import (
	"context"
	"crypto/tls"
	"net"
)

// DialTCP opens a plain TCP connection to addr and wraps it as a Conn.
func DialTCP(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(nc), nil
}

// DialTLS opens a TLS-secured TCP connection to addr, grounded on the
// teacher's clientOptions.TLSConfig field: callers build and own the
// *tls.Config (certificates, InsecureSkipVerify, server name).
func DialTLS(ctx context.Context, addr string, cfg *tls.Config) (*Conn, error) {
	var d tls.Dialer
	d.Config = cfg
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(nc), nil
}

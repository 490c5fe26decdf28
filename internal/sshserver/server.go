// Package sshserver serves the viewer over SSH. It wraps gliderlabs/ssh
// (which itself wraps golang.org/x/crypto/ssh) and adds legacy algorithm
// support for retro terminal clients (SyncTERM, NetRunner).
package sshserver

import (
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/gliderlabs/ssh"
	gossh "golang.org/x/crypto/ssh"
)

// Config holds SSH server configuration.
type Config struct {
	HostKeyPath         string
	Host                string
	Port                int
	LegacySSHAlgorithms bool
	SessionHandler      func(ssh.Session)
	PasswordHandler     ssh.PasswordHandler
	PublicKeyHandler    ssh.PublicKeyHandler
	// AllowAnonymous must be set to serve without any auth handler.
	AllowAnonymous bool
	Version        string // SSH server banner version (default: "gviewer")
}

// ErrNoAuth is returned by NewServer when no authentication is configured
// and anonymous access was not allowed.
var ErrNoAuth = errors.New("ssh: no authentication configured")

// Server wraps a gliderlabs/ssh server.
type Server struct {
	inner *ssh.Server
}

// NewServer creates and configures a new SSH server. A missing host key is
// generated and written to cfg.HostKeyPath.
func NewServer(cfg Config) (*Server, error) {
	if cfg.PasswordHandler == nil && cfg.PublicKeyHandler == nil && !cfg.AllowAnonymous {
		return nil, ErrNoAuth
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	signer, err := LoadOrCreateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, err
	}

	version := cfg.Version
	if version == "" {
		version = "gviewer"
	}

	srv := &ssh.Server{
		Addr:             addr,
		Handler:          cfg.SessionHandler,
		HostSigners:      []ssh.Signer{signer},
		PasswordHandler:  cfg.PasswordHandler,
		PublicKeyHandler: cfg.PublicKeyHandler,
		Version:          version,
		ConnectionFailedCallback: func(conn net.Conn, err error) {
			log.Printf("WARN: SSH connection failed from %s: %v", conn.RemoteAddr(), err)
		},
	}

	// When LegacySSHAlgorithms is enabled, include older algorithms
	// (diffie-hellman-group1-sha1, 3des-cbc, hmac-sha1) required by
	// retro terminal clients.
	legacy := cfg.LegacySSHAlgorithms
	srv.ServerConfigCallback = func(ctx ssh.Context) *gossh.ServerConfig {
		sc := &gossh.ServerConfig{}
		if legacy {
			sc.Config.KeyExchanges = legacyKeyExchanges
			sc.Config.Ciphers = legacyCiphers
			sc.Config.MACs = legacyMACs
		}
		return sc
	}

	return &Server{inner: srv}, nil
}

var (
	legacyKeyExchanges = []string{
		"curve25519-sha256",
		"curve25519-sha256@libssh.org",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
		"diffie-hellman-group14-sha256",
		"diffie-hellman-group16-sha512",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group1-sha1",
	}
	legacyCiphers = []string{
		"chacha20-poly1305@openssh.com",
		"aes128-gcm@openssh.com",
		"aes256-gcm@openssh.com",
		"aes128-ctr",
		"aes192-ctr",
		"aes256-ctr",
		"aes128-cbc",
		"aes256-cbc",
		"3des-cbc",
	}
	legacyMACs = []string{
		"hmac-sha2-256-etm@openssh.com",
		"hmac-sha2-512-etm@openssh.com",
		"hmac-sha2-256",
		"hmac-sha2-512",
		"hmac-sha1",
	}
)

// ListenAndServe binds to the configured address and serves SSH connections.
// It blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	log.Printf("INFO: SSH viewer listening on %s", s.inner.Addr)
	return s.inner.ListenAndServe()
}

// Serve starts serving on an existing listener. Blocks until closed.
func (s *Server) Serve(l net.Listener) error {
	return s.inner.Serve(l)
}

// Close shuts down the server and all active connections.
func (s *Server) Close() error {
	return s.inner.Close()
}

// Package sshauth authenticates SSH viewer clients against bcrypt password
// hashes and an authorized_keys file, with per-address lockout after
// repeated failures.
package sshauth

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gliderlabs/ssh"
	"golang.org/x/crypto/bcrypt"
	gossh "golang.org/x/crypto/ssh"
)

// ErrNoCredentials is returned by New when neither users nor keys are
// configured.
var ErrNoCredentials = errors.New("no SSH users or authorized keys configured")

// Config lists who may connect.
type Config struct {
	Users              map[string]string // user name -> bcrypt hash
	AuthorizedKeysPath string
	MaxFailedAttempts  int
	LockoutDuration    time.Duration
}

// Authenticator checks credentials and tracks failures per IP.
type Authenticator struct {
	users       map[string][]byte
	keys        []gossh.PublicKey
	maxFailures int
	lockout     time.Duration
	now         func() time.Time

	mu     sync.Mutex
	failed map[string][]time.Time
}

// New builds an Authenticator. The authorized_keys file, when named, must
// exist and parse.
func New(cfg Config) (*Authenticator, error) {
	a := &Authenticator{
		users:       make(map[string][]byte, len(cfg.Users)),
		maxFailures: cfg.MaxFailedAttempts,
		lockout:     cfg.LockoutDuration,
		now:         time.Now,
		failed:      make(map[string][]time.Time),
	}
	if a.maxFailures <= 0 {
		a.maxFailures = 5
	}
	if a.lockout <= 0 {
		a.lockout = 5 * time.Minute
	}
	for name, hash := range cfg.Users {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("user %q: password is not a bcrypt hash: %w", name, err)
		}
		a.users[name] = []byte(hash)
	}
	if cfg.AuthorizedKeysPath != "" {
		keys, err := LoadAuthorizedKeys(cfg.AuthorizedKeysPath)
		if err != nil {
			return nil, err
		}
		a.keys = keys
	}
	if len(a.users) == 0 && len(a.keys) == 0 {
		return nil, ErrNoCredentials
	}
	return a, nil
}

// LoadAuthorizedKeys parses an OpenSSH authorized_keys file.
func LoadAuthorizedKeys(path string) ([]gossh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	var keys []gossh.PublicKey
	for len(bytes.TrimSpace(data)) > 0 {
		key, _, _, rest, err := gossh.ParseAuthorizedKey(data)
		if err != nil {
			if onlyComments(data) {
				break
			}
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		keys = append(keys, key)
		data = rest
	}
	return keys, nil
}

func onlyComments(data []byte) bool {
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 && line[0] != '#' {
			return false
		}
	}
	return true
}

// HashPassword returns the bcrypt hash stored in the config for password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func extractIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// locked reports whether ip has used up its failures within the lockout
// window, pruning older failures.
func (a *Authenticator) locked(ip string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := a.now().Add(-a.lockout)
	recent := a.failed[ip][:0]
	for _, t := range a.failed[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(a.failed, ip)
		return false
	}
	a.failed[ip] = recent
	return len(recent) >= a.maxFailures
}

func (a *Authenticator) fail(ip string) {
	a.mu.Lock()
	a.failed[ip] = append(a.failed[ip], a.now())
	a.mu.Unlock()
}

// PasswordHandler checks the user's bcrypt hash. It returns nil when no
// users are configured, which disables password authentication.
func (a *Authenticator) PasswordHandler() ssh.PasswordHandler {
	if len(a.users) == 0 {
		return nil
	}
	return func(ctx ssh.Context, password string) bool {
		ip := extractIP(ctx.RemoteAddr())
		if a.locked(ip) {
			log.Printf("WARN: SSH password attempt from locked-out address %s", ip)
			return false
		}
		hash, ok := a.users[ctx.User()]
		if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
			log.Printf("INFO: SSH password rejected for user %q from %s", ctx.User(), ip)
			a.fail(ip)
			return false
		}
		log.Printf("INFO: SSH user %q authenticated by password from %s", ctx.User(), ip)
		return true
	}
}

// PublicKeyHandler accepts keys listed in authorized_keys. It returns nil
// when no keys are configured.
func (a *Authenticator) PublicKeyHandler() ssh.PublicKeyHandler {
	if len(a.keys) == 0 {
		return nil
	}
	return func(ctx ssh.Context, key ssh.PublicKey) bool {
		ip := extractIP(ctx.RemoteAddr())
		if a.locked(ip) {
			return false
		}
		for _, k := range a.keys {
			if ssh.KeysEqual(k, key) {
				log.Printf("INFO: SSH user %q authenticated by %s key from %s", ctx.User(), key.Type(), ip)
				return true
			}
		}
		// Clients offer several keys before a password; a miss is not a
		// failure.
		return false
	}
}

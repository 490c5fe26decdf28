package sshauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gliderlabs/ssh"
	gossh "golang.org/x/crypto/ssh"
)

// fakeContext is the slice of ssh.Context the handlers read.
type fakeContext struct {
	context.Context
	sync.Mutex
	user   string
	remote net.Addr
}

func (c *fakeContext) User() string                    { return c.user }
func (c *fakeContext) SessionID() string               { return "test" }
func (c *fakeContext) ClientVersion() string           { return "SSH-2.0-test" }
func (c *fakeContext) ServerVersion() string           { return "SSH-2.0-gviewer" }
func (c *fakeContext) RemoteAddr() net.Addr            { return c.remote }
func (c *fakeContext) LocalAddr() net.Addr             { return c.remote }
func (c *fakeContext) Permissions() *ssh.Permissions   { return &ssh.Permissions{} }
func (c *fakeContext) SetValue(key, value interface{}) {}

func newContext(user, ip string) ssh.Context {
	return &fakeContext{
		Context: context.Background(),
		user:    user,
		remote:  &net.TCPAddr{IP: net.ParseIP(ip), Port: 50000},
	}
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := HashPassword(pw)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("empty config = %v, want ErrNoCredentials", err)
	}
	if _, err := New(Config{Users: map[string]string{"sysop": "plaintext"}}); err == nil {
		t.Error("plaintext password accepted as a hash")
	}
	if _, err := New(Config{AuthorizedKeysPath: filepath.Join(t.TempDir(), "none")}); err == nil {
		t.Error("missing authorized_keys accepted")
	}
}

func TestPasswordHandler(t *testing.T) {
	a, err := New(Config{Users: map[string]string{"sysop": mustHash(t, "letmein")}})
	if err != nil {
		t.Fatal(err)
	}
	if a.PublicKeyHandler() != nil {
		t.Error("key handler set without keys")
	}
	check := a.PasswordHandler()

	tests := []struct {
		user, password string
		want           bool
	}{
		{"sysop", "letmein", true},
		{"sysop", "LETMEIN", false},
		{"guest", "letmein", false},
		{"sysop", "", false},
	}
	for _, tt := range tests {
		if got := check(newContext(tt.user, "192.0.2.1"), tt.password); got != tt.want {
			t.Errorf("%s/%q = %v, want %v", tt.user, tt.password, got, tt.want)
		}
	}
}

func TestLockout(t *testing.T) {
	a, err := New(Config{
		Users:             map[string]string{"sysop": mustHash(t, "letmein")},
		MaxFailedAttempts: 2,
		LockoutDuration:   time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	check := a.PasswordHandler()

	check(newContext("sysop", "192.0.2.1"), "a")
	check(newContext("sysop", "192.0.2.1"), "b")
	if check(newContext("sysop", "192.0.2.1"), "letmein") {
		t.Error("locked-out address authenticated")
	}
	if !check(newContext("sysop", "192.0.2.2"), "letmein") {
		t.Error("lockout spilled over to another address")
	}

	now = now.Add(2 * time.Minute)
	if !check(newContext("sysop", "192.0.2.1"), "letmein") {
		t.Error("lockout did not expire")
	}
}

func TestPublicKeyHandler(t *testing.T) {
	newKey := func() gossh.PublicKey {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		k, err := gossh.NewPublicKey(pub)
		if err != nil {
			t.Fatal(err)
		}
		return k
	}
	allowed, other := newKey(), newKey()

	path := filepath.Join(t.TempDir(), "authorized_keys")
	data := append([]byte("# viewer keys\n"), gossh.MarshalAuthorizedKey(allowed)...)
	data = append(data, "# trailing comment\n"...)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	a, err := New(Config{AuthorizedKeysPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.PasswordHandler() != nil {
		t.Error("password handler set without users")
	}
	check := a.PublicKeyHandler()
	if !check(newContext("sysop", "192.0.2.1"), allowed) {
		t.Error("listed key refused")
	}
	if check(newContext("sysop", "192.0.2.1"), other) {
		t.Error("unlisted key accepted")
	}
}

func TestLoadAuthorizedKeysMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authorized_keys")
	if err := os.WriteFile(path, []byte("ssh-ed25519 !!!notbase64\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAuthorizedKeys(path); err == nil {
		t.Error("malformed key accepted")
	}
}

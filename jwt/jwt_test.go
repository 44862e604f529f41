package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"petshop/config"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestIssueAndVerify(t *testing.T) {
	signer := NewSigner(newKey(t), time.Hour)

	token, expiresAt, err := signer.Issue(7, "customer")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) < 59*time.Minute {
		t.Fatalf("expiry too early: %v", expiresAt)
	}

	userID, role, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != 7 || role != "customer" {
		t.Fatalf("got user %d role %q", userID, role)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	signer := NewSigner(newKey(t), time.Minute)
	signer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := signer.Issue(1, "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	signer.now = time.Now
	if _, _, err := signer.Verify(token); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	token, _, err := NewSigner(newKey(t), time.Hour).Issue(1, "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, _, err := NewSigner(newKey(t), time.Hour).Verify(token); err == nil {
		t.Fatal("token signed by another key verified")
	}
	if _, _, err := NewSigner(newKey(t), time.Hour).Verify("not-a-token"); err == nil {
		t.Fatal("garbage verified")
	}
}

func TestLoadSignerFromPEM(t *testing.T) {
	key := newKey(t)
	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private_key.pem")
	publicPath := filepath.Join(dir, "public_key.pem")

	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})
	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
		t.Fatal(err)
	}

	signer, err := LoadSigner(config.JWTConfig{PrivateKeyPath: privatePath, PublicKeyPath: publicPath, TTL: time.Hour})
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	token, _, err := signer.Issue(3, "customer")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if id, _, err := NewSigner(key, time.Hour).Verify(token); err != nil || id != 3 {
		t.Fatalf("Verify = %d, %v", id, err)
	}

	if _, err := LoadSigner(config.JWTConfig{PrivateKeyPath: filepath.Join(dir, "missing.pem")}); err == nil {
		t.Fatal("missing key file loaded")
	}
}

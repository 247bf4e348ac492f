package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"testing"
	"time"
)

func hs256Token(t *testing.T, secret, payload string) string {
	t.Helper()
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := enc.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(header + "." + body))
	return header + "." + body + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestVerifyNone(t *testing.T) {
	v := &Verifier{Mode: "none"}
	if v.Enabled() {
		t.Fatal("none mode should not require tokens")
	}
	p, err := v.Verify("")
	if err != nil || p.Role != "admin" {
		t.Fatalf("p=%+v err=%v", p, err)
	}
}

func TestVerifyStaticToken(t *testing.T) {
	v := &Verifier{Mode: "token", Token: "s3cret"}
	if _, err := v.Verify("s3cret"); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify("wrong"); err == nil {
		t.Fatal("wrong token accepted")
	}
	empty := &Verifier{Mode: "token"}
	if _, err := empty.Verify("anything"); err == nil {
		t.Fatal("unconfigured token mode accepted a token")
	}
}

func TestVerifyJWT(t *testing.T) {
	v := &Verifier{Mode: "hmac", HMACSecret: []byte("k")}

	p, err := v.Verify(hs256Token(t, "k", `{"sub":"alice","role":"Admin"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Subject != "alice" || p.Role != "admin" {
		t.Fatalf("principal: %+v", p)
	}

	if _, err := v.Verify(hs256Token(t, "other", `{"sub":"alice"}`)); err == nil {
		t.Fatal("wrong secret accepted")
	}
	if _, err := v.Verify("not.a.jwt.token"); err == nil {
		t.Fatal("malformed token accepted")
	}

	p, err = v.Verify(hs256Token(t, "k", `{"sub":"bob"}`))
	if err != nil || p.Role != "user" {
		t.Fatalf("default role: %+v err=%v", p, err)
	}
}

func TestVerifyJWTExpiry(t *testing.T) {
	v := &Verifier{Mode: "hmac", HMACSecret: []byte("k")}
	expired := hs256Token(t, "k", `{"sub":"alice","exp":1}`)
	if _, err := v.Verify(expired); err == nil {
		t.Fatal("expired token accepted")
	}
	future := hs256Token(t, "k", `{"sub":"alice","exp":`+strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)+`}`)
	if _, err := v.Verify(future); err != nil {
		t.Fatal(err)
	}
}

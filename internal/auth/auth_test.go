package auth

import (
	"os"
	"testing"
)

func withEnv(t *testing.T, k, v string) {
	t.Helper()
	old, had := os.LookupEnv(k)
	if err := os.Setenv(k, v); err != nil {
		t.Fatalf("setenv %s: %v", k, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(k, old)
		} else {
			_ = os.Unsetenv(k)
		}
	})
}

func TestToken_FileRoundTrip(t *testing.T) {
	withEnv(t, "TODO_CONFIG_DIR", t.TempDir())
	withEnv(t, "TODO_TOKEN", "")

	ti, err := GetToken()
	if err != nil || ti != nil {
		t.Fatalf("expected no token yet, got %+v, %v", ti, err)
	}

	if err := SetToken("Bearer s3cret", "http://localhost:8765"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	ti, err = GetToken()
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if ti == nil || ti.Token != "s3cret" || ti.Source != "file" || ti.Server != "http://localhost:8765" {
		t.Fatalf("unexpected token info: %+v", ti)
	}

	if err := DeleteToken(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeleteToken(); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if ti, _ := GetToken(); ti != nil {
		t.Fatalf("expected token gone, got %+v", ti)
	}
}

func TestToken_EnvOverridesFile(t *testing.T) {
	withEnv(t, "TODO_CONFIG_DIR", t.TempDir())
	if err := SetToken("from-file", ""); err != nil {
		t.Fatalf("set token: %v", err)
	}
	withEnv(t, "TODO_TOKEN", "bearer from-env")
	ti, err := GetToken()
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if ti.Token != "from-env" || ti.Source != "env" {
		t.Fatalf("expected env token, got %+v", ti)
	}
}

func TestHashAndCheckToken(t *testing.T) {
	h, err := HashToken("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckToken(h, "s3cret") || !CheckToken(h, "Bearer s3cret") {
		t.Fatalf("expected token to match its hash")
	}
	if CheckToken(h, "wrong") || CheckToken("", "s3cret") {
		t.Fatalf("unexpected match")
	}
	if BearerToken("Bearer abc") != "abc" || BearerToken("Basic abc") != "" {
		t.Fatalf("BearerToken parsing broken")
	}
}

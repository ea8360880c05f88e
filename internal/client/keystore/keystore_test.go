package keystore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetGetRemove(t *testing.T) {
	st, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}

	type snapshot struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	in := snapshot{UserID: "u-1", Role: "doctor"}
	if err := st.Set("identity", in); err != nil {
		t.Fatal(err)
	}

	var out snapshot
	found, err := st.Get("identity", &out)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if out != in {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}

	if err := st.Remove("identity"); err != nil {
		t.Fatal(err)
	}
	found, err = st.Get("identity", &out)
	if err != nil || found {
		t.Fatalf("expected gone, found=%v err=%v", found, err)
	}
	// removing twice is fine
	if err := st.Remove("identity"); err != nil {
		t.Fatal(err)
	}
}

func TestGetMissingKey(t *testing.T) {
	st, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	var v string
	found, err := st.Get("nope", &v)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatalf("missing key reported as present")
	}
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Set("customToken", "tok-123"); err != nil {
		t.Fatal(err)
	}

	st2, err := Open(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	var tok string
	found, err := st2.Get("customToken", &tok)
	if err != nil || !found || tok != "tok-123" {
		t.Fatalf("reopen: found=%v tok=%q err=%v", found, tok, err)
	}
}

func TestPassphraseDerivedKey(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir, "local-secret")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Set("k", 42); err != nil {
		t.Fatal(err)
	}

	// same passphrase, same salt: values readable after reopen
	st2, err := Open(dir, "local-secret")
	if err != nil {
		t.Fatal(err)
	}
	var n int
	if found, err := st2.Get("k", &n); err != nil || !found || n != 42 {
		t.Fatalf("reopen with passphrase: found=%v n=%d err=%v", found, n, err)
	}

	// wrong passphrase cannot unseal
	st3, err := Open(dir, "wrong")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st3.Get("k", &n); err == nil {
		t.Fatalf("wrong passphrase must fail to unseal")
	}
}

func TestTamperDetected(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "k.sealed")
	if err := os.WriteFile(path, []byte("AAAA"), 0o600); err != nil {
		t.Fatal(err)
	}
	var v string
	if _, err := st.Get("k", &v); err == nil {
		t.Fatalf("tampered value must fail authentication")
	}
}

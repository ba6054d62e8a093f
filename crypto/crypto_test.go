package crypto

import (
	"bytes"
	"fmt"
	"testing"
)

func TestCryptRoundTrip(t *testing.T) {
	key, err := GenKey()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("some payload that crosses replicas")
	ciphertext, err := Encrypt(data, key)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(ciphertext, data) {
		t.Fatal("ciphertext equals plaintext")
	}
	out, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch %s != %s", out, data)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := DeriveKey("replica passphrase")
	k2 := DeriveKey("replica passphrase")
	if k1 != k2 {
		t.Fatalf("derived keys differ %s != %s", k1, k2)
	}
	ciphertext, err := Encrypt([]byte("x"), k1)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decrypt(ciphertext, k2)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "x" {
		t.Fatalf("round trip mismatch %s != x", out)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	ciphertext, err := Encrypt([]byte("x"), DeriveKey("a"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = Decrypt(ciphertext, DeriveKey("b"))
	if err == nil {
		t.Fatal("expected decrypt with wrong key to fail")
	}
}

func BenchmarkCrypt(b *testing.B) {
	key := DeriveKey("bench")
	for i := 0; i < b.N; i++ {
		d, _ := Encrypt([]byte(fmt.Sprintf("some random long string with then a num: %d", i)), key)
		Decrypt(d, key)
	}
}

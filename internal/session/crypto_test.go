package session

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher("test-secret-key")
	if err != nil {
		t.Fatalf("NewCipher() вернул ошибку: %v", err)
	}

	plaintext := []byte(`{"id":"u1","username":"admin"}`)
	encrypted, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() вернул ошибку: %v", err)
	}
	if strings.Contains(encrypted, "admin") {
		t.Error("зашифрованное значение содержит plaintext")
	}

	decrypted, err := c.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt() вернул ошибку: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Errorf("Decrypt() = %q, ожидается %q", decrypted, plaintext)
	}
}

func TestCipher_Base64Key(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher(base64) вернул ошибку: %v", err)
	}

	encrypted, err := c.Encrypt([]byte("data"))
	if err != nil {
		t.Fatalf("Encrypt() вернул ошибку: %v", err)
	}
	if _, err := c.Decrypt(encrypted); err != nil {
		t.Fatalf("Decrypt() вернул ошибку: %v", err)
	}
}

func TestCipher_EmptyKeyGeneratesRandom(t *testing.T) {
	c, err := NewCipher("")
	if err != nil {
		t.Fatalf("NewCipher(\"\") вернул ошибку: %v", err)
	}

	encrypted, err := c.Encrypt([]byte("data"))
	if err != nil {
		t.Fatalf("Encrypt() вернул ошибку: %v", err)
	}

	decrypted, err := c.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt() вернул ошибку: %v", err)
	}
	if string(decrypted) != "data" {
		t.Errorf("Decrypt() = %q", decrypted)
	}
}

func TestCipher_UniqueNonce(t *testing.T) {
	c, err := NewCipher("key")
	if err != nil {
		t.Fatalf("NewCipher() вернул ошибку: %v", err)
	}

	a, _ := c.Encrypt([]byte("same"))
	b, _ := c.Encrypt([]byte("same"))
	if a == b {
		t.Error("два шифрования одного plaintext дали одинаковый результат")
	}
}

func TestCipher_DecryptErrors(t *testing.T) {
	c, err := NewCipher("key")
	if err != nil {
		t.Fatalf("NewCipher() вернул ошибку: %v", err)
	}

	cases := []struct {
		name  string
		input string
	}{
		{"не base64", "%%%not-base64%%%"},
		{"слишком короткие данные", base64.URLEncoding.EncodeToString([]byte("x"))},
		{"повреждённый ciphertext", base64.URLEncoding.EncodeToString(make([]byte, 64))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Decrypt(tc.input); err == nil {
				t.Error("ожидалась ошибка дешифрования")
			}
		})
	}
}

func TestCipher_WrongKey(t *testing.T) {
	c1, _ := NewCipher("key-one")
	c2, _ := NewCipher("key-two")

	encrypted, err := c1.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() вернул ошибку: %v", err)
	}

	if _, err := c2.Decrypt(encrypted); err == nil {
		t.Error("дешифрование чужим ключом должно вернуть ошибку")
	}
}

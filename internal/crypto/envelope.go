package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// padBlock is the multiple that plaintext is padded to before encryption,
// so that the ciphertext length never leaks the true length of short secrets.
const padBlock = 4096

const nonceSize = 12

// Envelope is the result of Encrypt: a base64 ciphertext+tag string and a
// base64 IV transmitted alongside it, per the wire envelope in SPEC_FULL.md §6.3.
type Envelope struct {
	Ciphertext string // base64(gcm_ciphertext) + "." + base64(gcm_tag)
	IV         string // base64, 12 bytes
}

// Encrypt pads plaintext to a multiple of padBlock bytes (4-byte big-endian
// length header, then random padding), then seals it with AES-256-GCM under
// a fresh random 12-byte nonce. The 16-byte auth tag is appended to the
// ciphertext, base64-encoded, separated by ".".
func Encrypt(plaintext []byte, key []byte) (Envelope, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return Envelope{}, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Envelope{}, fmt.Errorf("crypto: new gcm: %w", err)
	}

	padded := padPlaintext(plaintext)

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("crypto: read nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, padded, nil)
	tagStart := len(sealed) - gcm.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext) + "." + base64.StdEncoding.EncodeToString(tag),
		IV:         base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// Decrypt reverses Encrypt. It returns ErrFormat if the envelope has no
// "."-delimited tag, and ErrAuthFailed if GCM tag verification fails.
// Decrypt failures are always fatal for that call; there is no plaintext
// fallback.
func Decrypt(env Envelope, key []byte) ([]byte, error) {
	parts := strings.SplitN(env.Ciphertext, ".", 2)
	if len(parts) != 2 {
		return nil, ErrFormat
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("crypto: decode ciphertext: %w", ErrFormat)
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("crypto: decode tag: %w", ErrFormat)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(nonce) != nonceSize {
		return nil, fmt.Errorf("crypto: decode iv: %w", ErrFormat)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	padded, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return unpadPlaintext(padded)
}

// padPlaintext prepends a 4-byte big-endian length header recording the
// original length, then pads with random bytes up to the next multiple of
// padBlock.
func padPlaintext(plaintext []byte) []byte {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(plaintext)))

	body := append(header, plaintext...)
	total := ((len(body) / padBlock) + 1) * padBlock
	if len(body)%padBlock == 0 {
		total = len(body)
	}

	padded := make([]byte, total)
	copy(padded, body)
	if total > len(body) {
		rand.Read(padded[len(body):])
	}
	return padded
}

func unpadPlaintext(padded []byte) ([]byte, error) {
	if len(padded) < 4 {
		return nil, fmt.Errorf("crypto: truncated envelope: %w", ErrFormat)
	}
	n := binary.BigEndian.Uint32(padded[:4])
	if int(n) > len(padded)-4 {
		return nil, fmt.Errorf("crypto: length header out of range: %w", ErrFormat)
	}
	return padded[4 : 4+n], nil
}

// Package crypt4gh implements the Crypt4GH container format: a magic
// header, one or more key-wrapped session-key packets, and a stream of
// ChaCha20-Poly1305 sealed 64 KiB data segments.
package crypt4gh

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// KeyPair is an X25519 key pair used to seal and open header packets.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair creates a fresh X25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	var priv [32]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return KeyPair{}, pipeerr.CryptoAuth("crypt4gh.GenerateKeyPair", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, pipeerr.CryptoAuth("crypt4gh.GenerateKeyPair", err)
	}
	var kp KeyPair
	kp.Private = priv
	copy(kp.Public[:], pub)
	return kp, nil
}

// derivePacketKey turns a static X25519 shared secret into the symmetric
// key used to seal/open one header packet. Crypt4GH's reference
// implementation derives this via crypto_box's HSalsa20 step; this uses a
// blake2b-keyed hash over the shared secret and both public keys instead, a
// construction in the same spirit (key confirmation binding both
// endpoints).
func derivePacketKey(sharedSecret, senderPublic, recipientPublic [32]byte) ([32]byte, error) {
	h, err := blake2b.New256(sharedSecret[:])
	if err != nil {
		return [32]byte{}, err
	}
	h.Write(senderPublic[:])
	h.Write(recipientPublic[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key, nil
}

// sealPacket encrypts plaintext for recipientPublic using senderPrivate,
// returning senderPublic || nonce || ciphertext, the on-disk packet body
// Crypt4GH calls an "encrypted packet".
func sealPacket(senderPrivate, recipientPublic [32]byte, plaintext []byte) ([]byte, error) {
	senderPublicRaw, err := curve25519.X25519(senderPrivate[:], curve25519.Basepoint)
	if err != nil {
		return nil, pipeerr.CryptoAuth("crypt4gh.sealPacket", err)
	}
	var senderPublic [32]byte
	copy(senderPublic[:], senderPublicRaw)

	sharedRaw, err := curve25519.X25519(senderPrivate[:], recipientPublic[:])
	if err != nil {
		return nil, pipeerr.CryptoAuth("crypt4gh.sealPacket", err)
	}
	var shared [32]byte
	copy(shared[:], sharedRaw)

	key, err := derivePacketKey(shared, senderPublic, recipientPublic)
	if err != nil {
		return nil, pipeerr.CryptoAuth("crypt4gh.sealPacket", err)
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, pipeerr.CryptoAuth("crypt4gh.sealPacket", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, pipeerr.CryptoAuth("crypt4gh.sealPacket", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 32+len(nonce)+len(ciphertext))
	out = append(out, senderPublic[:]...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// openPacket reverses sealPacket using the recipient's private key.
func openPacket(recipientPrivate [32]byte, packet []byte) ([]byte, error) {
	const op = "crypt4gh.openPacket"
	if len(packet) < 32+chacha20poly1305.NonceSize {
		return nil, pipeerr.Format(op, errShortPacket)
	}
	var senderPublic [32]byte
	copy(senderPublic[:], packet[:32])
	nonce := packet[32 : 32+chacha20poly1305.NonceSize]
	ciphertext := packet[32+chacha20poly1305.NonceSize:]

	recipientPublicRaw, err := curve25519.X25519(recipientPrivate[:], curve25519.Basepoint)
	if err != nil {
		return nil, pipeerr.CryptoAuth(op, err)
	}
	var recipientPublic [32]byte
	copy(recipientPublic[:], recipientPublicRaw)

	sharedRaw, err := curve25519.X25519(recipientPrivate[:], senderPublic[:])
	if err != nil {
		return nil, pipeerr.CryptoAuth(op, err)
	}
	var shared [32]byte
	copy(shared[:], sharedRaw)

	key, err := derivePacketKey(shared, senderPublic, recipientPublic)
	if err != nil {
		return nil, pipeerr.CryptoAuth(op, err)
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, pipeerr.CryptoAuth(op, err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, pipeerr.CryptoAuth(op, err)
	}
	return plaintext, nil
}

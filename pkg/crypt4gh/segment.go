package crypt4gh

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// segmentCiphertextSize is the on-disk size of a full data segment: a
// 12-byte nonce, up to SegmentPlaintextSize bytes of plaintext, and a
// 16-byte Poly1305 tag.
func segmentCiphertextSize(plaintextLen int) int {
	return chacha20poly1305.NonceSize + plaintextLen + 16
}

// SegmentCiphertextSize is the exported form of segmentCiphertextSize, used
// by callers that need to compute segment boundaries from the outside (for
// example, to read fixed-size segments concurrently via an io.ReaderAt).
func SegmentCiphertextSize(plaintextLen int) int {
	return segmentCiphertextSize(plaintextLen)
}

const nonceSize = chacha20poly1305.NonceSize

// EncryptSegments reads plaintext from r in SegmentPlaintextSize chunks,
// seals each with a fresh random nonce under sessionKey, and writes
// nonce||ciphertext||tag segments to w until r is exhausted.
func EncryptSegments(w io.Writer, r io.Reader, sessionKey [32]byte) error {
	const op = "crypt4gh.EncryptSegments"
	aead, err := chacha20poly1305.New(sessionKey[:])
	if err != nil {
		return pipeerr.CryptoAuth(op, err)
	}

	buf := make([]byte, SegmentPlaintextSize)
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			nonce := make([]byte, nonceSize)
			if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
				return pipeerr.CryptoAuth(op, err)
			}
			sealed := aead.Seal(nonce, nonce, buf[:n], nil)
			if _, werr := w.Write(sealed); werr != nil {
				return pipeerr.Format(op, werr)
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			return nil
		}
		if rerr != nil {
			return pipeerr.Format(op, rerr)
		}
	}
}

// DecryptSegment opens a single nonce||ciphertext||tag segment already read
// into memory. It lets callers decrypt segments out of order, such as a
// worker pool decrypting several segments of a seekable container at once.
func DecryptSegment(sessionKey [32]byte, seg []byte) ([]byte, error) {
	const op = "crypt4gh.DecryptSegment"
	if len(seg) < nonceSize+16 {
		return nil, pipeerr.Formatf(op, "truncated data segment (%d bytes)", len(seg))
	}
	aead, err := chacha20poly1305.New(sessionKey[:])
	if err != nil {
		return nil, pipeerr.CryptoAuth(op, err)
	}
	nonce := seg[:nonceSize]
	ciphertext := seg[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, pipeerr.CryptoAuth(op, err)
	}
	return plaintext, nil
}

// DecryptSegments reads nonce||ciphertext||tag segments from r, opens each
// under sessionKey, and writes the recovered plaintext to w.
func DecryptSegments(w io.Writer, r io.Reader, sessionKey [32]byte) error {
	const op = "crypt4gh.DecryptSegments"
	aead, err := chacha20poly1305.New(sessionKey[:])
	if err != nil {
		return pipeerr.CryptoAuth(op, err)
	}

	segBuf := make([]byte, segmentCiphertextSize(SegmentPlaintextSize))
	for {
		n, rerr := io.ReadFull(r, segBuf)
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil && rerr != io.ErrUnexpectedEOF {
			return pipeerr.Format(op, rerr)
		}
		seg := segBuf[:n]
		if len(seg) < nonceSize+16 {
			return pipeerr.Formatf(op, "truncated data segment (%d bytes)", len(seg))
		}
		nonce := seg[:nonceSize]
		ciphertext := seg[nonceSize:]
		plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return pipeerr.CryptoAuth(op, err)
		}
		if _, werr := w.Write(plaintext); werr != nil {
			return pipeerr.Format(op, werr)
		}
		if rerr == io.ErrUnexpectedEOF {
			return nil
		}
	}
}

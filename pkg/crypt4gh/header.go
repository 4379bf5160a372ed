package crypt4gh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

var (
	magic          = []byte("crypt4gh")
	errShortPacket = errors.New("packet too short to contain a sender key and nonce")
)

const (
	formatVersion = uint32(1)

	packetTypeDataEncParams = uint32(0)
	dataEncMethodChaCha20   = uint32(0)

	// SegmentPlaintextSize is the fixed plaintext size of every data
	// segment but the last, per the Crypt4GH wire format. It is not
	// configurable.
	SegmentPlaintextSize = 65536
)

// Header holds everything ParseHeader recovers from a container's header
// block: the session key used for the data segments, plus the raw encrypted
// packets (needed unchanged by add_recipient_crypt4gh, which appends a new
// packet without touching the ones it can't open).
type Header struct {
	SessionKey [32]byte
	RawPackets [][]byte

	// ByteLen is the total size in bytes of the header block ParseHeader
	// consumed (magic, version, packet count, and every packet including
	// its own length prefix). Callers that can seek use it to compute
	// where the data segments begin without re-reading the header.
	ByteLen int64
}

// ParseHeader reads the magic, version, and packet list from r, and opens
// the first packet recipientPrivate can decrypt to recover the session key.
func ParseHeader(r io.Reader, recipientPrivate [32]byte) (*Header, error) {
	const op = "crypt4gh.ParseHeader"

	gotMagic := make([]byte, len(magic))
	if _, err := io.ReadFull(r, gotMagic); err != nil {
		return nil, pipeerr.Format(op, err)
	}
	if !bytes.Equal(gotMagic, magic) {
		return nil, pipeerr.Formatf(op, "not a Crypt4GH container: bad magic")
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, pipeerr.Format(op, err)
	}
	if version != formatVersion {
		return nil, pipeerr.Formatf(op, "unsupported Crypt4GH version %d", version)
	}

	var packetCount uint32
	if err := binary.Read(r, binary.LittleEndian, &packetCount); err != nil {
		return nil, pipeerr.Format(op, err)
	}

	h := &Header{ByteLen: int64(len(magic) + 4 + 4)}
	var sessionKey [32]byte
	var haveSessionKey bool

	for i := uint32(0); i < packetCount; i++ {
		var packetLen uint32
		if err := binary.Read(r, binary.LittleEndian, &packetLen); err != nil {
			return nil, pipeerr.Format(op, err)
		}
		if packetLen < 4 {
			return nil, pipeerr.Formatf(op, "invalid packet length %d", packetLen)
		}
		body := make([]byte, packetLen-4)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, pipeerr.Format(op, err)
		}
		h.RawPackets = append(h.RawPackets, body)
		h.ByteLen += 4 + int64(len(body))

		if haveSessionKey {
			continue
		}
		plaintext, err := openPacket(recipientPrivate, body)
		if err != nil {
			continue // not addressed to this recipient; try the next packet
		}
		pt, key, perr := decodeDataEncParamsPacket(plaintext)
		if perr != nil || pt != packetTypeDataEncParams {
			continue
		}
		sessionKey = key
		haveSessionKey = true
	}

	if !haveSessionKey {
		return nil, pipeerr.CryptoAuth(op, errors.New("no packet could be opened with the given private key"))
	}
	h.SessionKey = sessionKey
	return h, nil
}

func decodeDataEncParamsPacket(plaintext []byte) (uint32, [32]byte, error) {
	var key [32]byte
	if len(plaintext) < 40 {
		return 0, key, errors.New("data encryption parameters packet too short")
	}
	packetType := binary.LittleEndian.Uint32(plaintext[0:4])
	method := binary.LittleEndian.Uint32(plaintext[4:8])
	if method != dataEncMethodChaCha20 {
		return 0, key, errors.New("unsupported data encryption method")
	}
	copy(key[:], plaintext[8:40])
	return packetType, key, nil
}

func encodeDataEncParamsPacket(sessionKey [32]byte) []byte {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint32(buf[0:4], packetTypeDataEncParams)
	binary.LittleEndian.PutUint32(buf[4:8], dataEncMethodChaCha20)
	copy(buf[8:40], sessionKey[:])
	return buf
}

// NewHeaderPacket builds an encrypted data-encryption-parameters packet
// carrying sessionKey, sealed from senderPrivate to recipientPublic.
func NewHeaderPacket(senderPrivate, recipientPublic [32]byte, sessionKey [32]byte) ([]byte, error) {
	return sealPacket(senderPrivate, recipientPublic, encodeDataEncParamsPacket(sessionKey))
}

// WriteHeader writes the magic, version, and packet list to w.
func WriteHeader(w io.Writer, packets [][]byte) error {
	const op = "crypt4gh.WriteHeader"
	if _, err := w.Write(magic); err != nil {
		return pipeerr.Format(op, err)
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return pipeerr.Format(op, err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(packets))); err != nil {
		return pipeerr.Format(op, err)
	}
	for _, p := range packets {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(p)+4)); err != nil {
			return pipeerr.Format(op, err)
		}
		if _, err := w.Write(p); err != nil {
			return pipeerr.Format(op, err)
		}
	}
	return nil
}

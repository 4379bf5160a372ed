package crypt4gh

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripsSessionKey(t *testing.T) {
	sender, err := GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)

	var sessionKey [32]byte
	copy(sessionKey[:], bytes.Repeat([]byte{0x42}, 32))

	packet, err := NewHeaderPacket(sender.Private, recipient.Public, sessionKey)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, [][]byte{packet}))

	header, err := ParseHeader(&buf, recipient.Private)
	require.NoError(t, err)
	assert.Equal(t, sessionKey, header.SessionKey)
}

func TestHeaderRejectsWrongRecipient(t *testing.T) {
	sender, err := GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)
	stranger, err := GenerateKeyPair()
	require.NoError(t, err)

	var sessionKey [32]byte
	copy(sessionKey[:], bytes.Repeat([]byte{0x01}, 32))

	packet, err := NewHeaderPacket(sender.Private, recipient.Public, sessionKey)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, [][]byte{packet}))

	_, err = ParseHeader(&buf, stranger.Private)
	require.Error(t, err)
}

func TestSegmentRoundTrip(t *testing.T) {
	var sessionKey [32]byte
	copy(sessionKey[:], bytes.Repeat([]byte{0x07}, 32))

	plaintext := bytes.Repeat([]byte("crypt4gh segment test data "), 4000) // spans multiple segments

	var encrypted bytes.Buffer
	require.NoError(t, EncryptSegments(&encrypted, bytes.NewReader(plaintext), sessionKey))

	var decrypted bytes.Buffer
	require.NoError(t, DecryptSegments(&decrypted, &encrypted, sessionKey))

	assert.Equal(t, plaintext, decrypted.Bytes())
}

func TestSegmentDecryptFailsWithWrongKey(t *testing.T) {
	var sessionKey [32]byte
	copy(sessionKey[:], bytes.Repeat([]byte{0x09}, 32))
	var wrongKey [32]byte
	copy(wrongKey[:], bytes.Repeat([]byte{0x10}, 32))

	var encrypted bytes.Buffer
	require.NoError(t, EncryptSegments(&encrypted, bytes.NewReader([]byte("some secret plaintext")), sessionKey))

	var decrypted bytes.Buffer
	err := DecryptSegments(&decrypted, &encrypted, wrongKey)
	require.Error(t, err)
}

func TestAddRecipientPreservesExistingPackets(t *testing.T) {
	sender, err := GenerateKeyPair()
	require.NoError(t, err)
	recipientA, err := GenerateKeyPair()
	require.NoError(t, err)
	recipientB, err := GenerateKeyPair()
	require.NoError(t, err)

	var sessionKey [32]byte
	copy(sessionKey[:], bytes.Repeat([]byte{0x55}, 32))

	packetA, err := NewHeaderPacket(sender.Private, recipientA.Public, sessionKey)
	require.NoError(t, err)

	var original bytes.Buffer
	require.NoError(t, WriteHeader(&original, [][]byte{packetA}))

	header, err := ParseHeader(&original, recipientA.Private)
	require.NoError(t, err)

	packetB, err := NewHeaderPacket(sender.Private, recipientB.Public, header.SessionKey)
	require.NoError(t, err)

	var extended bytes.Buffer
	allPackets := append(append([][]byte{}, header.RawPackets...), packetB)
	require.NoError(t, WriteHeader(&extended, allPackets))

	gotA, err := ParseHeader(&extended, recipientA.Private)
	require.NoError(t, err)
	assert.Equal(t, sessionKey, gotA.SessionKey)

	gotB, err := ParseHeader(&extended, recipientB.Private)
	require.NoError(t, err)
	assert.Equal(t, sessionKey, gotB.SessionKey)
}

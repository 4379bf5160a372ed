package crypt4ghstep

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/curve25519"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/crypt4gh"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

func b64(key [32]byte) string { return base64.StdEncoding.EncodeToString(key[:]) }

func buildContainer(t *testing.T, sender, recipient crypt4gh.KeyPair, sessionKey [32]byte, plaintext []byte) []byte {
	t.Helper()
	packet, err := crypt4gh.NewHeaderPacket(sender.Private, recipient.Public, sessionKey)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, crypt4gh.WriteHeader(&buf, [][]byte{packet}))
	require.NoError(t, crypt4gh.EncryptSegments(&buf, bytes.NewReader(plaintext), sessionKey))
	return buf.Bytes()
}

func fixedSessionKey(b byte) [32]byte {
	var k [32]byte
	copy(k[:], bytes.Repeat([]byte{b}, 32))
	return k
}

func TestDecryptRecoversPlaintext(t *testing.T) {
	ctx := context.Background()
	sender, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	sessionKey := fixedSessionKey(0x11)
	plaintext := []byte("the secret payload")

	container := buildContainer(t, sender, recipient, sessionKey, plaintext)
	in := pipeline.NewSingleOutputs(carrier.NewBytesCarrier(carrier.Metadata{FileName: "data.bin.c4gh"}, container))

	step := NewDecrypt(pipeline.SourceResolver{}, 4)
	outs, err := step.Process(ctx, in, pipeline.Args{"recipient_sec": b64(recipient.Private)})
	require.NoError(t, err)

	out, err := outs.Next(ctx)
	require.NoError(t, err)
	got, err := carrier.ReadAll(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
	assert.Equal(t, "data.bin", out.Metadata().FileName)
}

func TestValidateReportsInvalidForWrongKey(t *testing.T) {
	ctx := context.Background()
	sender, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	stranger, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	sessionKey := fixedSessionKey(0x22)

	container := buildContainer(t, sender, recipient, sessionKey, []byte("payload"))
	in := pipeline.NewSingleOutputs(carrier.NewBytesCarrier(carrier.Metadata{}, container))

	step := NewValidate(pipeline.SourceResolver{})
	outs, err := step.Process(ctx, in, pipeline.Args{"recipient_sec": b64(stranger.Private)})
	require.NoError(t, err)

	out, err := outs.Next(ctx)
	require.NoError(t, err)
	body, err := carrier.ReadAll(ctx, out)
	require.NoError(t, err)

	var result validateResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.False(t, result.Valid)
	require.NotNil(t, result.Error)
	assert.NotEmpty(t, *result.Error)
}

func TestValidateReportsValidForCorrectKey(t *testing.T) {
	ctx := context.Background()
	sender, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	recipient, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	sessionKey := fixedSessionKey(0x33)

	container := buildContainer(t, sender, recipient, sessionKey, []byte("payload"))
	in := pipeline.NewSingleOutputs(carrier.NewBytesCarrier(carrier.Metadata{}, container))

	step := NewValidate(pipeline.SourceResolver{})
	outs, err := step.Process(ctx, in, pipeline.Args{"recipient_sec": b64(recipient.Private)})
	require.NoError(t, err)

	out, err := outs.Next(ctx)
	require.NoError(t, err)
	body, err := carrier.ReadAll(ctx, out)
	require.NoError(t, err)

	var result validateResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Valid)
}

func TestAddRecipientLetsBothRecipientsDecrypt(t *testing.T) {
	ctx := context.Background()
	sender, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	recipientA, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	recipientB, err := crypt4gh.GenerateKeyPair()
	require.NoError(t, err)
	sessionKey := fixedSessionKey(0x44)
	plaintext := []byte("shared secret payload")

	container := buildContainer(t, sender, recipientA, sessionKey, plaintext)
	in := pipeline.NewSingleOutputs(carrier.NewBytesCarrier(carrier.Metadata{FileName: "x.c4gh"}, container))

	addStep := NewAddRecipient(pipeline.SourceResolver{}, 4)
	outs, err := addStep.Process(ctx, in, pipeline.Args{
		"recipient_sec": b64(recipientA.Private),
		"recipient_pub": b64(recipientB.Public),
	})
	require.NoError(t, err)

	extendedOut, err := outs.Next(ctx)
	require.NoError(t, err)
	extendedBytes, err := carrier.ReadAll(ctx, extendedOut)
	require.NoError(t, err)

	for _, key := range []crypt4gh.KeyPair{recipientA, recipientB} {
		decryptIn := pipeline.NewSingleOutputs(carrier.NewBytesCarrier(carrier.Metadata{}, extendedBytes))
		decryptStep := NewDecrypt(pipeline.SourceResolver{}, 4)
		decOuts, err := decryptStep.Process(ctx, decryptIn, pipeline.Args{"recipient_sec": b64(key.Private)})
		require.NoError(t, err)
		decOut, err := decOuts.Next(ctx)
		require.NoError(t, err)
		got, err := carrier.ReadAll(ctx, decOut)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}

	header, err := crypt4gh.ParseHeader(bytes.NewReader(extendedBytes), recipientB.Private)
	require.NoError(t, err)
	require.Len(t, header.RawPackets, 2)
	newPacket := header.RawPackets[1]
	require.True(t, len(newPacket) >= 32)
	embeddedSenderPublic := newPacket[:32]

	recipientAPublicRaw, err := curve25519.X25519(recipientA.Private[:], curve25519.Basepoint)
	require.NoError(t, err)
	assert.NotEqual(t, recipientAPublicRaw, embeddedSenderPublic,
		"add_recipient_crypt4gh must seal the new packet with a freshly generated sender keypair, not the caller's recipient_sec")
}

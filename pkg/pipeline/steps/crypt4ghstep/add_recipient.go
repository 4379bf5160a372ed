package crypt4ghstep

import (
	"context"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/crypt4gh"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

// AddRecipient implements add_recipient_crypt4gh: opens the container
// header with an existing recipient's private key, seals the recovered
// session key for a new recipient's public key under a freshly generated
// ephemeral sender keypair, and re-emits the container with the new packet
// appended — the existing packets and the data segment stream pass through
// byte for byte. The ephemeral keypair is discarded once the packet is
// sealed; nothing needs it again.
type AddRecipient struct {
	Resolver      pipeline.SourceResolver
	QueueCapacity int
}

func NewAddRecipient(resolver pipeline.SourceResolver, queueCapacity int) *AddRecipient {
	return &AddRecipient{Resolver: resolver, QueueCapacity: queueCapacity}
}

func (a *AddRecipient) ProducesMultipleOutputs() bool { return false }

// ToleratesSourceURLOnNonFirstStep implements pipeline.SourceURLTolerant.
func (a *AddRecipient) ToleratesSourceURLOnNonFirstStep() bool { return true }

func (a *AddRecipient) Process(ctx context.Context, inputs pipeline.Outputs, args pipeline.Args) (pipeline.Outputs, error) {
	const op = "crypt4ghstep.AddRecipient"

	privateKey, err := decodeKeyArg(op, args, "recipient_sec")
	if err != nil {
		return nil, err
	}
	newRecipientPublic, err := decodeKeyArg(op, args, "recipient_pub")
	if err != nil {
		return nil, err
	}

	in, err := a.Resolver.ResolveInput(ctx, op, inputs, args)
	if err != nil {
		return nil, err
	}

	reader := carrier.NewReader(ctx, in)
	header, err := crypt4gh.ParseHeader(reader, privateKey)
	if err != nil {
		return nil, err
	}

	sender, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	newPacket, err := crypt4gh.NewHeaderPacket(sender.Private, newRecipientPublic, header.SessionKey)
	if err != nil {
		return nil, err
	}
	packets := append(append([][]byte{}, header.RawPackets...), newPacket)

	out, producer := carrier.NewQueueCarrier(ctx, in.Metadata(), a.QueueCapacity)

	go func() {
		w := &carrier.ProducerWriter{Producer: producer}
		if err := crypt4gh.WriteHeader(w, packets); err != nil {
			producer.Fail(err)
			return
		}
		if err := streamRemainder(ctx, w, reader); err != nil {
			producer.Fail(err)
			return
		}
		producer.Close()
	}()

	return pipeline.NewSingleOutputs(out), nil
}

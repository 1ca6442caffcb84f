// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/internal/numbers"
	"github.com/BoostyLabs/inscriber/internal/reverse"
)

var (
	// ErrInvalidInscription defines that inscription data can not be inscribed.
	ErrInvalidInscription = failure.New(failure.CodeInvalidInscription)
	// ErrMalformedInscription defines that inscription is malformed and failed to parse.
	ErrMalformedInscription = ErrInvalidInscription.WithMessage("inscription is malformed")
	// ErrRepeatedFieldData defines that already filled field met while parsing.
	ErrRepeatedFieldData = ErrInvalidInscription.WithMessage("field already filled")
)

// inscriptionOrdTag defines ord tag for inscription to disambiguate inscriptions from other uses of envelopes.
const inscriptionOrdTag string = "ord"

// maxBodyDataPushLen defines maximum size of the data push for bitcoin scripts.
const maxBodyDataPushLen int = txscript.MaxScriptElementSize

// maxScriptDataPushes defines maximum number of the data push of maxBodyDataPushLen size
// that fits into a single script builder.
const maxScriptDataPushes int = 19

// Inscription describes inscription type of the inscription protocol,
// which inscribe sats with arbitrary content, creating bitcoin-native digital artifacts.
type Inscription struct {
	Body            []byte
	ContentEncoding string
	ContentType     string
	Delegate        *ID
	Metadata        []byte // CBOR encoded.
	Metaprotocol    []byte
	Parents         []*ID
	Pointer         *uint64 // sat offset in reveal transaction outputs.
}

// SetPointer sets pointer to the sat at provided offset of reveal outputs.
func (i *Inscription) SetPointer(offset uint64) {
	i.Pointer = &offset
}

// IntoScript returns Inscription as an envelope script.
func (i *Inscription) IntoScript() ([]byte, error) {
	// inscription protocol start.
	header := txscript.NewScriptBuilder().
		AddOp(txscript.OP_FALSE).
		AddOp(txscript.OP_IF).
		AddData([]byte(inscriptionOrdTag))

	if len(i.ContentType) != 0 {
		addPush(header.AddOps(TagContentType.IntoDataPush()), []byte(i.ContentType))
	}

	if i.Pointer != nil {
		addPush(header.AddOps(TagPointer.IntoDataPush()), reverse.LittleEndian(*i.Pointer))
	}

	for _, parent := range i.Parents {
		header.AddOps(TagParent.IntoDataPush()).AddData(parent.IntoDataPush())
	}

	script, err := header.Script()
	if err != nil {
		return nil, err
	}

	script, err = appendTaggedPushes(script, TagMetadata, i.Metadata)
	if err != nil {
		return nil, err
	}

	tail := txscript.NewScriptBuilder()
	if len(i.Metaprotocol) != 0 {
		addPush(tail.AddOps(TagMetaprotocol.IntoDataPush()), i.Metaprotocol)
	}

	if len(i.ContentEncoding) != 0 {
		addPush(tail.AddOps(TagContentEncoding.IntoDataPush()), []byte(i.ContentEncoding))
	}

	if i.Delegate != nil {
		tail.AddOps(TagDelegate.IntoDataPush()).AddData(i.Delegate.IntoDataPush())
	}

	tailScript, err := tail.Script()
	if err != nil {
		return nil, err
	}
	script = append(script, tailScript...)

	if len(i.Body) != 0 {
		script = append(script, txscript.OP_0)
		for _, group := range i.PrepareBody() {
			bodyScriptBuilder := txscript.NewScriptBuilder()
			for _, chunk := range group {
				addPush(bodyScriptBuilder, chunk)
			}

			bodyPartScript, err := bodyScriptBuilder.Script()
			if err != nil {
				return nil, err
			}

			script = append(script, bodyPartScript...)
		}
	}

	// inscription protocol end.
	return append(script, txscript.OP_ENDIF), nil
}

// appendTaggedPushes appends data split into 520 bytes pushes, each one preceded by tag.
func appendTaggedPushes(script []byte, tag Tag, data []byte) ([]byte, error) {
	for _, group := range groupChunks(splitChunks(data)) {
		scriptBuilder := txscript.NewScriptBuilder()
		for _, chunk := range group {
			addPush(scriptBuilder.AddOps(tag.IntoDataPush()), chunk)
		}

		part, err := scriptBuilder.Script()
		if err != nil {
			return nil, err
		}

		script = append(script, part...)
	}

	return script, nil
}

// addPush adds data push keeping single byte values as OP_DATA_1 pushes instead of small integer opcodes.
func addPush(scriptBuilder *txscript.ScriptBuilder, data []byte) {
	if len(data) == 1 {
		scriptBuilder.AddOps([]byte{txscript.OP_DATA_1, data[0]})
		return
	}

	scriptBuilder.AddData(data)
}

// PrepareBody returns Inscription body as array of bytes arrays with maxBodyDataPushLen size with separation by maximum script size.
func (i *Inscription) PrepareBody() [][][]byte {
	return groupChunks(splitChunks(i.Body))
}

// splitChunks splits data into maxBodyDataPushLen sized chunks.
func splitChunks(data []byte) [][]byte {
	chunks := make([][]byte, numbers.CeilDiv(len(data), maxBodyDataPushLen))
	for idx := range chunks {
		start := idx * maxBodyDataPushLen
		chunks[idx] = data[start:numbers.Min(start+maxBodyDataPushLen, len(data))]
	}

	return chunks
}

// groupChunks groups chunks by maxScriptDataPushes.
func groupChunks(chunks [][]byte) [][][]byte {
	groups := make([][][]byte, numbers.CeilDiv(len(chunks), maxScriptDataPushes))
	for idx := range groups {
		start := idx * maxScriptDataPushes
		groups[idx] = chunks[start:numbers.Min(start+maxScriptDataPushes, len(chunks))]
	}

	return groups
}

// IntoScriptForWitness returns Inscription as a script with pubKey verify at the beginning for witness data.
func (i *Inscription) IntoScriptForWitness(serializedPubKey []byte) ([]byte, error) {
	return NewRevealScript(serializedPubKey, i)
}

// NewRevealScript returns taproot leaf script: <x-only key> OP_CHECKSIG followed by envelope of every inscription.
func NewRevealScript(serializedPubKey []byte, items ...*Inscription) ([]byte, error) {
	if len(items) == 0 {
		return nil, ErrInvalidInscription.WithMessage("no inscriptions provided")
	}

	script, err := txscript.NewScriptBuilder().
		AddData(serializedPubKey).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		envelope, err := item.IntoScript()
		if err != nil {
			return nil, failure.Wrap(failure.CodeInvalidInscription, err)
		}

		script = append(script, envelope...)
	}

	return script, nil
}

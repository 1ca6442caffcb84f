// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/inscriber/internal/reverse"
	"github.com/BoostyLabs/inscriber/internal/sequencereader"
)

// instruction describes single parsed script operation.
type instruction struct {
	opcode byte
	data   []byte
}

// push returns pushed data if instruction is a data push.
func (ins instruction) push() ([]byte, bool) {
	switch {
	case ins.opcode == txscript.OP_0:
		return []byte{}, true
	case ins.opcode >= txscript.OP_DATA_1 && ins.opcode <= txscript.OP_PUSHDATA4:
		return ins.data, true
	case ins.opcode == txscript.OP_1NEGATE:
		return []byte{0x81}, true
	case ins.opcode >= txscript.OP_1 && ins.opcode <= txscript.OP_16:
		return []byte{ins.opcode - txscript.OP_1 + 1}, true
	default:
		return nil, false
	}
}

// disassemble splits script into instructions.
func disassemble(script []byte) ([]instruction, error) {
	var instructions []instruction
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		instructions = append(instructions, instruction{opcode: tokenizer.Opcode(), data: tokenizer.Data()})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, ErrMalformedInscription
	}

	return instructions, nil
}

// isEnvelopeStart checks that reader points on OP_FALSE OP_IF "ord".
func isEnvelopeStart(sr *sequencereader.SequenceReader[instruction]) bool {
	first, err := sr.PeekAt(0)
	if err != nil || first.opcode != txscript.OP_FALSE {
		return false
	}

	second, err := sr.PeekAt(1)
	if err != nil || second.opcode != txscript.OP_IF {
		return false
	}

	third, err := sr.PeekAt(2)
	if err != nil {
		return false
	}

	protocol, ok := third.push()

	return ok && bytes.Equal(protocol, []byte(inscriptionOrdTag))
}

// IsPossibleInscriptionWitnessData returns true if witness data contains at least one inscription envelope.
func IsPossibleInscriptionWitnessData(data []byte) bool {
	inscriptions, err := ParseInscriptionsFromWitnessScript(data)

	return err == nil && len(inscriptions) > 0
}

// ParseInscriptionFromWitnessData parses the first inscription envelope of witness data.
func ParseInscriptionFromWitnessData(data []byte) (*Inscription, error) {
	inscriptions, err := ParseInscriptionsFromWitnessScript(data)
	if err != nil {
		return nil, err
	}

	return inscriptions[0], nil
}

// ParseInscriptionsFromWitnessScript parses every inscription envelope of the leaf script in order.
func ParseInscriptionsFromWitnessScript(script []byte) ([]*Inscription, error) {
	instructions, err := disassemble(script)
	if err != nil {
		return nil, err
	}

	var (
		sr     = sequencereader.New(instructions)
		parsed []*Inscription
	)
	for sr.HasNext() {
		if !isEnvelopeStart(sr) {
			sr.Skip(1)
			continue
		}

		// Skip OP_FALSE OP_IF OP_PUSH "ord" due to previous checks.
		sr.Skip(3)

		inscription, err := parseEnvelope(sr)
		if err != nil {
			return nil, err
		}

		parsed = append(parsed, inscription)
	}

	if len(parsed) == 0 {
		return nil, ErrMalformedInscription
	}

	return parsed, nil
}

// parseEnvelope reads tag-value pairs and body till OP_ENDIF.
func parseEnvelope(sr *sequencereader.SequenceReader[instruction]) (*Inscription, error) {
	inscription := new(Inscription)
	for {
		ins, err := sr.Next()
		if err != nil {
			return nil, ErrMalformedInscription
		}

		if ins.opcode == txscript.OP_ENDIF {
			return inscription, nil
		}

		tag, ok := ins.push()
		if !ok {
			return nil, ErrMalformedInscription
		}

		// empty data push means that all next data pushes are body parts.
		if len(tag) == 0 {
			return inscription, inscription.fillBody(sr)
		}

		next, err := sr.Next()
		if err != nil {
			return nil, ErrMalformedInscription
		}

		value, ok := next.push()
		if !ok || len(tag) != 1 {
			return nil, ErrMalformedInscription
		}

		if err = inscription.fillFieldByTag(Tag(tag[0]), value); err != nil {
			return nil, err
		}
	}
}

// fillBody fills Body field with body data pushes.
func (i *Inscription) fillBody(sr *sequencereader.SequenceReader[instruction]) error {
	body := make([]byte, 0)
	for {
		ins, err := sr.Next()
		if err != nil {
			return ErrMalformedInscription
		}

		if ins.opcode == txscript.OP_ENDIF {
			i.Body = body
			return nil
		}

		data, ok := ins.push()
		if !ok {
			return ErrMalformedInscription
		}

		body = append(body, data...)
	}
}

// fillFieldByTag fills Inscription fields by provided tag.
func (i *Inscription) fillFieldByTag(tag Tag, value []byte) (err error) {
	switch tag {
	case TagContentType:
		if len(i.ContentType) != 0 {
			return ErrRepeatedFieldData
		}

		i.ContentType = string(value)
	case TagPointer:
		if i.Pointer != nil {
			return ErrRepeatedFieldData
		}

		trimmed := reverse.TrimTrailingZeros(value)
		if len(trimmed) > 8 {
			return ErrMalformedInscription
		}

		i.SetPointer(reverse.FromLittleEndian(trimmed))
	case TagParent:
		id, err := DecodeIDPush(value)
		if err != nil {
			return err
		}

		i.Parents = append(i.Parents, id)
	case TagMetadata:
		i.Metadata = append(i.Metadata, value...)
	case TagMetaprotocol:
		if len(i.Metaprotocol) != 0 {
			return ErrRepeatedFieldData
		}

		i.Metaprotocol = bytes.Clone(value)
	case TagContentEncoding:
		if len(i.ContentEncoding) != 0 {
			return ErrRepeatedFieldData
		}

		i.ContentEncoding = string(value)
	case TagDelegate:
		if i.Delegate != nil {
			return ErrRepeatedFieldData
		}

		i.Delegate, err = DecodeIDPush(value)
		if err != nil {
			return err
		}
	case TagRune, TagNote, TagNop, TagUnbound:
	default:
		if !tag.Ignorable() {
			return ErrMalformedInscription
		}
	}

	return nil
}

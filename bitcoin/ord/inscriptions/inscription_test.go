// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
)

const parentID = "521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79dai1"

func TestInscriptionScript(t *testing.T) {
	parent, err := inscriptions.ParseID(parentID)
	require.NoError(t, err)

	t.Run("hello world envelope", func(t *testing.T) {
		inscription := inscriptions.Inscription{ContentType: "text/plain", Body: []byte("Hello, Bitcoin!")}
		script, err := inscription.IntoScript()
		require.NoError(t, err)

		disasm, err := txscript.DisasmString(script)
		require.NoError(t, err)
		require.Equal(t, "0 OP_IF 6f7264 01 746578742f706c61696e 0 48656c6c6f2c20426974636f696e21 OP_ENDIF", disasm)
	})

	tests := []struct {
		name        string
		inscription inscriptions.Inscription
	}{
		{"text", inscriptions.Inscription{ContentType: "text/plain;charset=utf-8", Body: []byte("Hello, Bitcoin!")}},
		{"single zero byte body", inscriptions.Inscription{ContentType: "application/octet-stream", Body: []byte{0}}},
		{"small int body", inscriptions.Inscription{ContentType: "application/octet-stream", Body: []byte{5}}},
		{"large body", inscriptions.Inscription{ContentType: "image/png", Body: bytes.Repeat([]byte{0xab, 0x01}, 15000)}},
		{"all tags", inscriptions.Inscription{
			ContentType:     "application/json",
			ContentEncoding: "br",
			Body:            []byte(`{"p":"test"}`),
			Metadata:        bytes.Repeat([]byte{0xa1}, 1200),
			Metaprotocol:    []byte("brc-20"),
			Parents:         []*inscriptions.ID{parent, parent},
			Delegate:        parent,
			Pointer:         pointer(1000),
		}},
		{"zero pointer no body", inscriptions.Inscription{ContentType: "text/plain", Pointer: pointer(0)}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			script, err := test.inscription.IntoScript()
			require.NoError(t, err)

			parsed, err := inscriptions.ParseInscriptionFromWitnessData(script)
			require.NoError(t, err)
			requireEqualInscriptions(t, &test.inscription, parsed)
		})
	}
}

func TestRevealScriptBatch(t *testing.T) {
	key := bytes.Repeat([]byte{0x02}, 32)
	first := &inscriptions.Inscription{ContentType: "text/plain", Body: []byte("first")}
	second := &inscriptions.Inscription{ContentType: "text/plain", Body: []byte("second"), Pointer: pointer(546)}

	script, err := inscriptions.NewRevealScript(key, first, second)
	require.NoError(t, err)
	require.Equal(t, byte(txscript.OP_DATA_32), script[0])
	require.Equal(t, key, script[1:33])
	require.Equal(t, byte(txscript.OP_CHECKSIG), script[33])

	parsed, err := inscriptions.ParseInscriptionsFromWitnessScript(script)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	requireEqualInscriptions(t, first, parsed[0])
	requireEqualInscriptions(t, second, parsed[1])
	require.True(t, inscriptions.IsPossibleInscriptionWitnessData(script))

	single, err := first.IntoScriptForWitness(key)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(script, single))

	_, err = inscriptions.NewRevealScript(key)
	require.ErrorIs(t, err, inscriptions.ErrInvalidInscription)
}

func TestParseMalformed(t *testing.T) {
	build := func(ops func(b *txscript.ScriptBuilder)) []byte {
		b := txscript.NewScriptBuilder().AddOp(txscript.OP_FALSE).AddOp(txscript.OP_IF).AddData([]byte("ord"))
		ops(b)
		script, err := b.Script()
		require.NoError(t, err)
		return script
	}

	tests := []struct {
		name   string
		script []byte
	}{
		{"no envelope", []byte{txscript.OP_TRUE}},
		{"unterminated", build(func(b *txscript.ScriptBuilder) {
			b.AddOps(inscriptions.TagContentType.IntoDataPush()).AddData([]byte("text/plain"))
		})},
		{"tag without value", build(func(b *txscript.ScriptBuilder) {
			b.AddOps(inscriptions.TagContentType.IntoDataPush()).AddOp(txscript.OP_ENDIF)
		})},
		{"repeated content type", build(func(b *txscript.ScriptBuilder) {
			b.AddOps(inscriptions.TagContentType.IntoDataPush()).AddData([]byte("a"))
			b.AddOps(inscriptions.TagContentType.IntoDataPush()).AddData([]byte("b"))
			b.AddOp(txscript.OP_ENDIF)
		})},
		{"unknown even tag", build(func(b *txscript.ScriptBuilder) {
			b.AddOps([]byte{txscript.OP_DATA_1, 20}).AddData([]byte("value"))
			b.AddOp(txscript.OP_ENDIF)
		})},
		{"non push in body", build(func(b *txscript.ScriptBuilder) {
			b.AddOp(txscript.OP_0).AddData([]byte("body")).AddOp(txscript.OP_DUP).AddOp(txscript.OP_ENDIF)
		})},
		{"broken push", []byte{txscript.OP_FALSE, txscript.OP_IF, txscript.OP_DATA_3, 'o', 'r'}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := inscriptions.ParseInscriptionsFromWitnessScript(test.script)
			require.ErrorIs(t, err, inscriptions.ErrMalformedInscription)
		})
	}

	t.Run("unknown odd tag is ignored", func(t *testing.T) {
		script := build(func(b *txscript.ScriptBuilder) {
			b.AddOps([]byte{txscript.OP_DATA_1, 21}).AddData([]byte("value"))
			b.AddOps(inscriptions.TagContentType.IntoDataPush()).AddData([]byte("text/plain"))
			b.AddOp(txscript.OP_ENDIF)
		})

		inscription, err := inscriptions.ParseInscriptionFromWitnessData(script)
		require.NoError(t, err)
		require.Equal(t, "text/plain", inscription.ContentType)
	})
}

func TestMetadata(t *testing.T) {
	inscription := inscriptions.Inscription{ContentType: "text/plain", Body: []byte("x")}

	metadata, err := inscription.DecodeMetadata()
	require.NoError(t, err)
	require.Nil(t, metadata)

	require.NoError(t, inscription.SetMetadata(map[string]any{"name": "hello", "size": 3, "tags": []any{"a", "b"}}))
	encoded := bytes.Clone(inscription.Metadata)

	require.NoError(t, inscription.SetMetadata(map[string]any{"tags": []any{"a", "b"}, "size": 3, "name": "hello"}))
	require.Equal(t, encoded, inscription.Metadata)

	script, err := inscription.IntoScript()
	require.NoError(t, err)
	parsed, err := inscriptions.ParseInscriptionFromWitnessData(script)
	require.NoError(t, err)

	metadata, err = parsed.DecodeMetadata()
	require.NoError(t, err)
	require.Equal(t, "hello", metadata["name"])
	require.EqualValues(t, 3, metadata["size"])

	require.NoError(t, inscription.SetMetadata(nil))
	require.Nil(t, inscription.Metadata)
}

func TestCompress(t *testing.T) {
	t.Run("compressible", func(t *testing.T) {
		body := []byte(strings.Repeat("inscription ", 200))
		inscription := inscriptions.Inscription{ContentType: "text/plain", Body: bytes.Clone(body)}

		compressed, err := inscription.Compress()
		require.NoError(t, err)
		require.True(t, compressed)
		require.Equal(t, inscriptions.ContentEncodingBrotli, inscription.ContentEncoding)
		require.Less(t, len(inscription.Body), len(body))

		decoded, err := inscription.DecodedBody()
		require.NoError(t, err)
		require.Equal(t, body, decoded)
	})

	t.Run("incompressible", func(t *testing.T) {
		inscription := inscriptions.Inscription{ContentType: "text/plain", Body: []byte("a")}

		compressed, err := inscription.Compress()
		require.NoError(t, err)
		require.False(t, compressed)
		require.Empty(t, inscription.ContentEncoding)
		require.Equal(t, []byte("a"), inscription.Body)
	})

	t.Run("unsupported encoding", func(t *testing.T) {
		inscription := inscriptions.Inscription{ContentType: "text/plain", Body: []byte("a"), ContentEncoding: "gzip"}
		_, err := inscription.DecodedBody()
		require.ErrorIs(t, err, inscriptions.ErrInvalidInscription)
	})
}

func TestValidate(t *testing.T) {
	parent, err := inscriptions.ParseID(parentID)
	require.NoError(t, err)

	tests := []struct {
		name        string
		inscription *inscriptions.Inscription
		allowEmpty  bool
		valid       bool
	}{
		{"valid", &inscriptions.Inscription{ContentType: "text/plain", Body: []byte("x")}, false, true},
		{"nil", nil, false, false},
		{"no content type", &inscriptions.Inscription{Body: []byte("x")}, false, false},
		{"empty body", &inscriptions.Inscription{ContentType: "text/plain"}, false, false},
		{"empty body allowed", &inscriptions.Inscription{ContentType: "text/plain"}, true, true},
		{"delegate", &inscriptions.Inscription{Delegate: parent}, false, true},
		{"long content type", &inscriptions.Inscription{ContentType: strings.Repeat("a", 521), Body: []byte("x")}, false, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.inscription.Validate(test.allowEmpty)
			if test.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, inscriptions.ErrInvalidInscription)
		})
	}
}

func TestContent(t *testing.T) {
	valid := &inscriptions.Inscription{ContentType: "text/plain", Body: []byte("x")}
	invalid := &inscriptions.Inscription{Body: []byte("x")}

	single := inscriptions.Single(valid)
	require.Equal(t, inscriptions.KindSingle, single.Kind())
	require.Equal(t, "single", single.Kind().String())
	require.Equal(t, 1, single.Len())
	require.NoError(t, single.Validate(false))

	batch := inscriptions.Batch(valid, valid)
	require.Equal(t, inscriptions.KindBatch, batch.Kind())
	require.Len(t, batch.Inscriptions(), 2)
	require.NoError(t, batch.Validate(false))

	err := inscriptions.Batch(valid, invalid).Validate(false)
	require.ErrorIs(t, err, inscriptions.ErrInvalidInscription)
	require.Contains(t, err.Error(), "inscription 1")

	require.ErrorIs(t, inscriptions.Batch().Validate(false), inscriptions.ErrInvalidInscription)
	require.ErrorIs(t, inscriptions.Content{}.Validate(false), inscriptions.ErrInvalidInscription)
}

func pointer(value uint64) *uint64 {
	return &value
}

func requireEqualInscriptions(t *testing.T, expected, actual *inscriptions.Inscription) {
	t.Helper()

	require.Equal(t, expected.ContentType, actual.ContentType)
	require.Equal(t, expected.ContentEncoding, actual.ContentEncoding)
	require.True(t, bytes.Equal(expected.Body, actual.Body), "body mismatch")
	require.True(t, bytes.Equal(expected.Metadata, actual.Metadata), "metadata mismatch")
	require.True(t, bytes.Equal(expected.Metaprotocol, actual.Metaprotocol), "metaprotocol mismatch")
	require.Equal(t, expected.Pointer, actual.Pointer)
	require.Len(t, actual.Parents, len(expected.Parents))
	for idx := range expected.Parents {
		require.Equal(t, expected.Parents[idx].String(), actual.Parents[idx].String())
	}
	if expected.Delegate == nil {
		require.Nil(t, actual.Delegate)
	} else {
		require.Equal(t, expected.Delegate.String(), actual.Delegate.String())
	}
}

// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/fxamacker/cbor/v2"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// ContentEncodingBrotli defines content-encoding tag value of brotli compressed body.
const ContentEncodingBrotli = "br"

// metadataEncMode encodes metadata with sorted map keys, so the same map always gives the same script.
var metadataEncMode = func() cbor.EncMode {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return encMode
}()

// SetMetadata encodes metadata map into CBOR metadata field.
// Empty map clears metadata.
func (i *Inscription) SetMetadata(metadata map[string]any) error {
	if len(metadata) == 0 {
		i.Metadata = nil
		return nil
	}

	encoded, err := metadataEncMode.Marshal(metadata)
	if err != nil {
		return failure.Wrap(failure.CodeInvalidInscription, err)
	}

	i.Metadata = encoded

	return nil
}

// DecodeMetadata decodes CBOR metadata field into map, nil if no metadata set.
func (i *Inscription) DecodeMetadata() (map[string]any, error) {
	if len(i.Metadata) == 0 {
		return nil, nil
	}

	var metadata map[string]any
	if err := cbor.Unmarshal(i.Metadata, &metadata); err != nil {
		return nil, failure.Wrap(failure.CodeInvalidInscription, err)
	}

	return metadata, nil
}

// Compress brotli-compresses the body and sets content-encoding when it makes the body smaller.
// Returns true if the body was replaced.
func (i *Inscription) Compress() (bool, error) {
	if len(i.Body) == 0 || len(i.ContentEncoding) != 0 {
		return false, nil
	}

	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, brotli.BestCompression)
	if _, err := writer.Write(i.Body); err != nil {
		return false, failure.Wrap(failure.CodeInvalidInscription, err)
	}
	if err := writer.Close(); err != nil {
		return false, failure.Wrap(failure.CodeInvalidInscription, err)
	}

	if buf.Len() >= len(i.Body) {
		return false, nil
	}

	i.Body = buf.Bytes()
	i.ContentEncoding = ContentEncodingBrotli

	return true, nil
}

// DecodedBody returns body with content-encoding reverted.
func (i *Inscription) DecodedBody() ([]byte, error) {
	switch i.ContentEncoding {
	case "":
		return i.Body, nil
	case ContentEncodingBrotli:
		decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(i.Body)))
		if err != nil {
			return nil, failure.Wrap(failure.CodeInvalidInscription, err)
		}

		return decoded, nil
	default:
		return nil, ErrInvalidInscription.WithMessage("unsupported content encoding " + i.ContentEncoding)
	}
}

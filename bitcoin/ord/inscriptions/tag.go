// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"strconv"

	"github.com/btcsuite/btcd/txscript"
)

// Tag defines envelope field identifier pushed before the field value.
// Unknown odd tags are ignored by parsers, unknown even tags make envelope unrecognized.
type Tag byte

const (
	// TagContentType defines MIME type of the body.
	TagContentType Tag = 1
	// TagPointer defines sat offset in reveal outputs the inscription is made on.
	TagPointer Tag = 2
	// TagParent defines parent inscription ID, repeated for every parent.
	TagParent Tag = 3
	// TagMetadata defines CBOR encoded metadata, split into 520 bytes pushes.
	TagMetadata Tag = 5
	// TagMetaprotocol defines metaprotocol identifier.
	TagMetaprotocol Tag = 7
	// TagContentEncoding defines body encoding, e.g. br.
	TagContentEncoding Tag = 9
	// TagDelegate defines inscription ID which content is served instead of the body.
	TagDelegate Tag = 11
	// TagRune defines rune commitment, ignored.
	TagRune Tag = 13
	// TagNote defines note, ignored.
	TagNote Tag = 15
	// TagUnbound defines unbound marker, ignored.
	TagUnbound Tag = 66
	// TagNop defines no-op tag, ignored.
	TagNop Tag = 255
)

var tagNames = map[Tag]string{
	TagContentType:     "content_type",
	TagPointer:         "pointer",
	TagParent:          "parent",
	TagMetadata:        "metadata",
	TagMetaprotocol:    "metaprotocol",
	TagContentEncoding: "content_encoding",
	TagDelegate:        "delegate",
	TagRune:            "rune",
	TagNote:            "note",
	TagUnbound:         "unbound",
	TagNop:             "nop",
}

// IntoDataPush returns tag as single byte data push.
func (t Tag) IntoDataPush() []byte {
	return []byte{txscript.OP_DATA_1, byte(t)}
}

// Known reports whether tag is a part of the protocol.
func (t Tag) Known() bool {
	_, ok := tagNames[t]
	return ok
}

// Ignorable reports whether unknown tag may be skipped by parser.
func (t Tag) Ignorable() bool {
	return t%2 == 1
}

// String implements fmt.Stringer.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}

	return "tag_" + strconv.Itoa(int(t))
}

// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"fmt"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// maxFieldLen defines maximum size of single pushed field value.
const maxFieldLen = maxBodyDataPushLen

// Validate checks that inscription can be inscribed.
// Empty body is accepted only if allowEmptyBody is set or inscription delegates its content.
func (i *Inscription) Validate(allowEmptyBody bool) error {
	if i == nil {
		return ErrInvalidInscription.WithMessage("no inscription provided")
	}
	if len(i.ContentType) == 0 && i.Delegate == nil {
		return ErrInvalidInscription.WithMessage("content type is required")
	}
	if len(i.ContentType) > maxFieldLen {
		return ErrInvalidInscription.WithMessage("content type is too long")
	}
	if len(i.Metaprotocol) > maxFieldLen {
		return ErrInvalidInscription.WithMessage("metaprotocol is too long")
	}
	if len(i.ContentEncoding) > maxFieldLen {
		return ErrInvalidInscription.WithMessage("content encoding is too long")
	}
	if len(i.Body) == 0 && !allowEmptyBody && i.Delegate == nil {
		return ErrInvalidInscription.WithMessage("inscription body is empty")
	}

	return nil
}

// Kind defines shape of inscription content.
type Kind int

const (
	// KindSingle defines one inscription per reveal transaction.
	KindSingle Kind = iota + 1
	// KindBatch defines several inscriptions sharing one reveal transaction.
	KindBatch
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindBatch:
		return "batch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Content is either a single inscription or a batch of inscriptions.
type Content struct {
	kind  Kind
	items []*Inscription
}

// Single returns content of one inscription.
func Single(inscription *Inscription) Content {
	return Content{kind: KindSingle, items: []*Inscription{inscription}}
}

// Batch returns content of several inscriptions revealed by one transaction.
func Batch(items ...*Inscription) Content {
	return Content{kind: KindBatch, items: items}
}

// Kind returns content kind.
func (c Content) Kind() Kind {
	return c.kind
}

// Inscriptions returns content inscriptions in reveal output order.
func (c Content) Inscriptions() []*Inscription {
	return c.items
}

// Len returns amount of inscriptions.
func (c Content) Len() int {
	return len(c.items)
}

// Validate validates content shape and every inscription.
func (c Content) Validate(allowEmptyBody bool) error {
	switch c.kind {
	case KindSingle:
		if len(c.items) != 1 {
			return ErrInvalidInscription.WithMessage("single content must hold exactly one inscription")
		}
	case KindBatch:
		if len(c.items) == 0 {
			return ErrInvalidInscription.WithMessage("batch content is empty")
		}
	default:
		return ErrInvalidInscription.WithMessage("unknown content kind")
	}

	for idx, item := range c.items {
		if err := item.Validate(allowEmptyBody); err != nil {
			structured := failure.From(err)
			return structured.WithMessage(fmt.Sprintf("inscription %d: %s", idx, structured.Message))
		}
	}

	return nil
}

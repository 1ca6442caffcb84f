// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"go.uber.org/zap"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/keys"
	"github.com/BoostyLabs/inscriber/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/inscriber/bitcoin/utils"
)

// PrepareParams describes data needed to prepare inscription commit address and leaf script.
type PrepareParams struct {
	Content          inscriptions.Content
	RevealPublicKey  []byte            // x-only, compressed or uncompressed, derived from RevealPrivateKey if empty.
	RevealPrivateKey *btcec.PrivateKey // optional, kept to sign reveal locally.
	RecoveryKey      []byte            // optional internal key, defaults to reveal key.
	Postage          int64             // per inscription output, defaults to DefaultPostage.
	AllowEmptyBody   bool
}

// CommitAddress describes taproot output committing to the inscription script.
type CommitAddress struct {
	Address     string
	Script      []byte // OP_1 <32 bytes output key>.
	InternalKey []byte // x-only.
}

// InscriptionScript describes leaf script spent by reveal transaction.
type InscriptionScript struct {
	Script       []byte
	ControlBlock []byte
	LeafVersion  txscript.TapscriptLeafVersion
}

// PreparedInscription describes inscription ready to be committed.
type PreparedInscription struct {
	Content           inscriptions.Content
	CommitAddress     CommitAddress
	RevealPublicKey   []byte // x-only.
	RevealPrivateKey  *btcec.PrivateKey
	InscriptionScript InscriptionScript
	Postage           []int64 // value of every reveal inscription output, in Satoshi.
}

// TotalPostage returns sum of inscription outputs values.
func (p *PreparedInscription) TotalPostage() int64 {
	var total int64
	for _, postage := range p.Postage {
		total += postage
	}

	return total
}

// PrepareInscription builds leaf script with envelope of every inscription keyed to reveal key
// and derives commit address from internal key and single leaf tree.
// Batch inscriptions after the first point to the first sat of their own output unless pointer is set.
func (b *TxBuilder) PrepareInscription(params PrepareParams) (*PreparedInscription, error) {
	if err := params.Content.Validate(params.AllowEmptyBody); err != nil {
		return nil, err
	}

	revealKey, err := revealKeyOf(params)
	if err != nil {
		return nil, err
	}

	internalKey := revealKey
	if len(params.RecoveryKey) != 0 {
		internalKey, err = keys.ParsePublicKey(params.RecoveryKey)
		if err != nil {
			return nil, err
		}
	}

	postage := params.Postage
	if postage == 0 {
		postage = DefaultPostage
	}
	if postage < b.dustLimit {
		return nil, ErrInsufficientUTXOValue.WithDetail("postage", postage).WithMessage("postage is below dust limit")
	}

	var (
		items    = params.Content.Inscriptions()
		copies   = make([]*inscriptions.Inscription, len(items))
		postages = make([]int64, len(items))
	)
	for idx, item := range items {
		inscription := *item
		if idx > 0 && inscription.Pointer == nil {
			inscription.SetPointer(uint64(int64(idx) * postage))
		}

		copies[idx] = &inscription
		postages[idx] = postage
	}

	content := inscriptions.Single(copies[0])
	if params.Content.Kind() == inscriptions.KindBatch {
		content = inscriptions.Batch(copies...)
	}

	revealXOnly := schnorr.SerializePubKey(revealKey)
	leafScript, err := inscriptions.NewRevealScript(revealXOnly, copies...)
	if err != nil {
		return nil, err
	}

	tree, err := utils.NewTapScriptTreeFromRawScripts(leafScript)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidInscription, err)
	}

	output, err := keys.TaprootAddress(internalKey, tree, b.network)
	if err != nil {
		return nil, err
	}

	controlBlock, err := utils.LeafControlBlock(tree, 0, internalKey)
	if err != nil {
		return nil, failure.Wrap(failure.CodeInvalidInscription, err)
	}

	b.log.Debug("inscription prepared",
		zap.String("commit_address", output.Address),
		zap.Stringer("kind", content.Kind()),
		zap.Int("script_len", len(leafScript)),
	)

	return &PreparedInscription{
		Content: content,
		CommitAddress: CommitAddress{
			Address:     output.Address,
			Script:      output.Script,
			InternalKey: output.InternalKey,
		},
		RevealPublicKey:  revealXOnly,
		RevealPrivateKey: params.RevealPrivateKey,
		InscriptionScript: InscriptionScript{
			Script:       leafScript,
			ControlBlock: controlBlock,
			LeafVersion:  txscript.BaseLeafVersion,
		},
		Postage: postages,
	}, nil
}

// revealKeyOf returns reveal public key from params, deriving it from private key if needed.
func revealKeyOf(params PrepareParams) (*btcec.PublicKey, error) {
	if len(params.RevealPublicKey) == 0 {
		if params.RevealPrivateKey == nil {
			return nil, keys.ErrInvalidPublicKey.WithMessage("no reveal key provided")
		}

		return params.RevealPrivateKey.PubKey(), nil
	}

	revealKey, err := keys.ParsePublicKey(params.RevealPublicKey)
	if err != nil {
		return nil, err
	}

	if params.RevealPrivateKey != nil && !bytes.Equal(schnorr.SerializePubKey(revealKey), schnorr.SerializePubKey(params.RevealPrivateKey.PubKey())) {
		return nil, keys.ErrInvalidPublicKey.WithMessage("reveal public key does not match private key")
	}

	return revealKey, nil
}

// Validate checks that prepared inscription carries commit and script data.
func (p *PreparedInscription) Validate() error {
	if p == nil || len(p.CommitAddress.Script) == 0 {
		return ErrMissingCommitAddress
	}
	if len(p.InscriptionScript.Script) == 0 || len(p.InscriptionScript.ControlBlock) == 0 {
		return ErrMissingInscriptionScript
	}

	return nil
}

// ReconcileInternalKey checks that internal key with leaf script produces output key of commit script.
// On mismatch the reveal key is tried and, if it matches, internal key and control block are corrected.
// Returns true if record was corrected.
func (p *PreparedInscription) ReconcileInternalKey() (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	outputKey, err := utils.OutputKeyFromScript(p.CommitAddress.Script)
	if err != nil {
		return false, failure.Wrap(failure.CodeMissingCommitAddress, err)
	}

	tree, err := utils.NewTapScriptTreeFromRawScripts(p.InscriptionScript.Script)
	if err != nil {
		return false, ErrMissingInscriptionScript
	}

	for idx, candidate := range [][]byte{p.CommitAddress.InternalKey, p.RevealPublicKey} {
		internalKey, err := keys.ParseXOnly(candidate)
		if err != nil {
			continue
		}

		computed, _ := utils.TaprootOutputKey(internalKey, tree)
		if !bytes.Equal(schnorr.SerializePubKey(computed), outputKey) {
			continue
		}

		controlBlock, err := utils.LeafControlBlock(tree, 0, internalKey)
		if err != nil {
			return false, failure.Wrap(failure.CodeInternalKeyMismatch, err)
		}

		corrected := idx > 0 || !bytes.Equal(controlBlock, p.InscriptionScript.ControlBlock)
		p.CommitAddress.InternalKey = schnorr.SerializePubKey(internalKey)
		p.InscriptionScript.ControlBlock = controlBlock

		return corrected, nil
	}

	return false, ErrInternalKeyMismatch
}

// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package failure

// Code identifies a defined error.
type Code string

// Defined error codes.
const (
	// Wallet.
	CodeInsufficientFunds     Code = "INSUFFICIENT_FUNDS"
	CodeAllUTXOsReserved      Code = "ALL_UTXOS_RESERVED"
	CodeNoUTXOsProvided       Code = "NO_UTXOS_PROVIDED"
	CodeInsufficientUTXOValue Code = "INSUFFICIENT_UTXO_VALUE"
	CodeSatpointUTXONotFound  Code = "SATPOINT_UTXO_NOT_FOUND"
	CodeSigningFailed         Code = "SIGNING_FAILED"
	CodeInternalKeyMismatch   Code = "INTERNAL_KEY_MISMATCH"
	CodeInvalidKeyLength      Code = "INVALID_KEY_LENGTH"
	CodeInvalidPublicKey      Code = "INVALID_PUBLIC_KEY"
	CodeInvalidPrivateKey     Code = "INVALID_PRIVATE_KEY"
	CodeTxExtractionFailed    Code = "TRANSACTION_EXTRACTION_FAILED"

	// Validation.
	CodeInvalidUTXO              Code = "INVALID_UTXO"
	CodeInvalidChangeAddress     Code = "INVALID_CHANGE_ADDRESS"
	CodeInvalidDestination       Code = "INVALID_DESTINATION_ADDRESS"
	CodeInvalidFeeRate           Code = "INVALID_FEE_RATE"
	CodeInvalidInscription       Code = "INVALID_INSCRIPTION"
	CodeInvalidSatpoint          Code = "INVALID_SATPOINT"
	CodeInvalidTransaction       Code = "INVALID_TRANSACTION"
	CodeMissingCommitAddress     Code = "MISSING_COMMIT_ADDRESS"
	CodeMissingInscriptionScript Code = "MISSING_INSCRIPTION_SCRIPT"

	// Network.
	CodeBroadcastFailed    Code = "TRANSACTION_BROADCAST_FAILED"
	CodeBroadcastTimeout   Code = "BROADCAST_TIMEOUT"
	CodeBroadcastCancelled Code = "BROADCAST_CANCELLED"
	CodeFeeTooLow          Code = "FEE_TOO_LOW"
	CodeNoActiveNodes      Code = "NO_ACTIVE_NODES"
	CodeTxNotFound         Code = "TRANSACTION_NOT_FOUND"
	CodeDataSourceFailed   Code = "DATA_SOURCE_FAILED"

	// System.
	CodeConfiguration           Code = "CONFIGURATION_ERROR"
	CodeStorage                 Code = "STORAGE_ERROR"
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"
	CodeTrackedTxNotFound       Code = "TRACKED_TRANSACTION_NOT_FOUND"
	CodeUnexpected              Code = "UNEXPECTED_ERROR"
)

// Category groups error codes by their origin.
type Category string

// Error categories.
const (
	CategoryNetwork    Category = "NETWORK"
	CategoryWallet     Category = "WALLET"
	CategoryValidation Category = "VALIDATION"
	CategorySystem     Category = "SYSTEM"
)

// Severity describes error impact.
type Severity string

// Error severities.
const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// definition is a catalog entry of defined error code.
type definition struct {
	category    Category
	severity    Severity
	message     string
	suggestion  string
	recoverable bool
}

var catalog = map[Code]definition{
	CodeInsufficientFunds: {CategoryWallet, SeverityError,
		"insufficient funds for transaction",
		"Add funds to the wallet or lower the fee rate.", true},
	CodeAllUTXOsReserved: {CategoryWallet, SeverityError,
		"all available utxos are reserved or carry inscriptions",
		"Refresh the UTXO set or wait until reserved outputs are released.", true},
	CodeNoUTXOsProvided: {CategoryValidation, SeverityError,
		"no utxos provided",
		"Refresh the UTXO set of the funding address.", true},
	CodeInsufficientUTXOValue: {CategoryWallet, SeverityError,
		"commit output value does not cover postage and reveal fee",
		"Rebuild the commit transaction with a larger amount.", false},
	CodeSatpointUTXONotFound: {CategoryValidation, SeverityError,
		"satpoint utxo not found in provided set",
		"Refresh UTXOs and make sure the satpoint output is unspent and owned by the wallet.", false},
	CodeSigningFailed: {CategoryWallet, SeverityError,
		"failed to sign transaction",
		"Reconnect the signer and try again.", true},
	CodeInternalKeyMismatch: {CategoryWallet, SeverityCritical,
		"taproot internal key does not match commit output",
		"Prepare the inscription again.", false},
	CodeInvalidKeyLength: {CategoryValidation, SeverityError,
		"invalid key length",
		"Provide a 32-byte private key or a valid WIF.", false},
	CodeInvalidPublicKey: {CategoryValidation, SeverityError,
		"invalid public key",
		"Provide a valid 32-byte x-only public key.", false},
	CodeInvalidPrivateKey: {CategoryValidation, SeverityError,
		"invalid private key",
		"Provide a valid private key or WIF for the selected network.", false},
	CodeTxExtractionFailed: {CategoryWallet, SeverityError,
		"failed to extract final transaction",
		"Provide a signing key or an external signer.", false},
	CodeInvalidUTXO: {CategoryValidation, SeverityError,
		"invalid utxo",
		"Refresh the UTXO set.", false},
	CodeInvalidChangeAddress: {CategoryValidation, SeverityError,
		"invalid change address",
		"Provide a change address valid for the selected network.", false},
	CodeInvalidDestination: {CategoryValidation, SeverityError,
		"invalid destination address",
		"Provide a destination address valid for the selected network.", false},
	CodeInvalidFeeRate: {CategoryValidation, SeverityError,
		"invalid fee rate",
		"Use a positive fee rate in sat/vB.", false},
	CodeInvalidInscription: {CategoryValidation, SeverityError,
		"invalid inscription data",
		"Provide a content type and a non-empty body.", false},
	CodeInvalidSatpoint: {CategoryValidation, SeverityError,
		"invalid satpoint",
		"Use txid:vout[:offset] format.", false},
	CodeInvalidTransaction: {CategoryValidation, SeverityError,
		"invalid raw transaction",
		"Provide a hex encoded transaction.", false},
	CodeMissingCommitAddress: {CategoryValidation, SeverityError,
		"missing commit address",
		"Prepare the inscription before building transactions.", false},
	CodeMissingInscriptionScript: {CategoryValidation, SeverityError,
		"missing inscription script",
		"Prepare the inscription before building transactions.", false},
	CodeBroadcastFailed: {CategoryNetwork, SeverityError,
		"failed to broadcast transaction",
		"Check node connectivity and try again.", true},
	CodeBroadcastTimeout: {CategoryNetwork, SeverityWarning,
		"broadcast request timed out",
		"Check node connectivity or increase the timeout.", true},
	CodeBroadcastCancelled: {CategoryNetwork, SeverityInfo,
		"broadcast cancelled",
		"Start the broadcast again if needed.", false},
	CodeFeeTooLow: {CategoryNetwork, SeverityWarning,
		"fee rate below minimum relay fee",
		"Raise the fee rate.", true},
	CodeNoActiveNodes: {CategoryNetwork, SeverityCritical,
		"no active nodes for network",
		"Configure at least one active endpoint for the selected network.", false},
	CodeTxNotFound: {CategoryNetwork, SeverityWarning,
		"transaction not found",
		"Wait for propagation or check the transaction id.", true},
	CodeDataSourceFailed: {CategoryNetwork, SeverityError,
		"blockchain data source request failed",
		"Check the data source endpoint.", true},
	CodeConfiguration: {CategorySystem, SeverityCritical,
		"invalid configuration",
		"Fix the configuration and restart.", false},
	CodeStorage: {CategorySystem, SeverityError,
		"storage failure",
		"Check the storage path and permissions.", true},
	CodeInvalidStatusTransition: {CategorySystem, SeverityError,
		"invalid transaction status transition",
		"Check the transaction history.", false},
	CodeTrackedTxNotFound: {CategorySystem, SeverityWarning,
		"tracked transaction not found",
		"Check the tracking id.", false},
	CodeUnexpected: {CategorySystem, SeverityError,
		"unexpected error",
		"Try again or contact support.", true},
}

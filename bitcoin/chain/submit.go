// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BoostyLabs/inscriber/bitcoin/failure"
)

// maxResponseSize limits amount of bytes read from data source responses.
const maxResponseSize = 1 << 20

// minRelayFeeRejection is a part of node rejection reason for transactions paying too low fee.
const minRelayFeeRejection = "min relay fee not met"

// SubmitRawTx posts raw transaction hex as text/plain to url and returns txid from response body.
// Rejections mentioning minimum relay fee are returned as FEE_TOO_LOW, other failures
// as TRANSACTION_BROADCAST_FAILED. Context errors are returned as is.
func SubmitRawTx(ctx context.Context, client *http.Client, url, rawTxHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(rawTxHex))
	if err != nil {
		return "", failure.Wrap(failure.CodeConfiguration, err).WithDetail("url", url)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		return "", failure.Wrap(failure.CodeBroadcastFailed, err).WithDetail("url", url)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		return "", failure.Wrap(failure.CodeBroadcastFailed, err).WithDetail("url", url)
	}

	text := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK {
		code := failure.CodeBroadcastFailed
		if strings.Contains(strings.ToLower(text), minRelayFeeRejection) {
			code = failure.CodeFeeTooLow
		}

		return "", failure.Wrapf(code, "unexpected status %d: %s", resp.StatusCode, text).
			WithDetail("url", url).
			WithDetail("status", resp.StatusCode)
	}

	if !IsTxID(text) {
		return "", failure.Wrap(failure.CodeBroadcastFailed, fmt.Errorf("malformed txid in response: %q", text)).
			WithDetail("url", url)
	}

	return strings.ToLower(text), nil
}

package validation

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/blindauction/api"
)

// ExtractCOSEPayload extracts the payload from a tagged COSE_Sign1 message
// without verifying it.
// COSE_Sign1 structure: 18([protected, unprotected, payload, signature])
func ExtractCOSEPayload(coseBytes []byte) ([]byte, error) {
	var tagged cbor.Tag
	if err := cbor.Unmarshal(coseBytes, &tagged); err != nil {
		return nil, fmt.Errorf("parse COSE message: %w", err)
	}
	if tagged.Number != cose.CBORTagSign1Message {
		return nil, fmt.Errorf("unexpected CBOR tag %d, want COSE_Sign1", tagged.Number)
	}

	coseArray, ok := tagged.Content.([]any)
	if !ok || len(coseArray) != 4 {
		return nil, fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements")
	}

	payload, ok := coseArray[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("invalid payload in COSE structure")
	}
	return payload, nil
}

// VerifyCOSESignature verifies a base64 COSE_Sign1 receipt against the
// daemon's public key and returns the key id found in its headers.
func VerifyCOSESignature(coseB64 api.ReceiptCOSEBase64, publicKey *ecdsa.PublicKey) ([]byte, error) {
	coseBytes, err := coseB64.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode COSE bytes: %w", err)
	}

	msg, err := coseBytes.Message()
	if err != nil {
		return nil, err
	}

	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return nil, fmt.Errorf("read algorithm header: %w", err)
	}
	if alg != api.ReceiptAlgorithm {
		return nil, fmt.Errorf("unexpected algorithm %s, want %s", alg, api.ReceiptAlgorithm)
	}

	verifier, err := cose.NewVerifier(api.ReceiptAlgorithm, publicKey)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("COSE signature verification failed: %w", err)
	}

	kid, _ := msg.Headers.Unprotected[cose.HeaderLabelKeyID].([]byte)
	return kid, nil
}

// keyIDMatches reports whether kid identifies publicKey.
func keyIDMatches(kid []byte, publicKey *ecdsa.PublicKey) (bool, error) {
	want, err := api.KeyID(publicKey)
	if err != nil {
		return false, err
	}
	return bytes.Equal(kid, want), nil
}

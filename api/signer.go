package api

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/veraison/go-cose"
)

// ReceiptAlgorithm is the COSE algorithm receipts are signed with.
const ReceiptAlgorithm = cose.AlgorithmES256

// ReceiptSigner signs receipts with a P-256 key.
type ReceiptSigner struct {
	privateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
	signer     cose.Signer
	keyID      []byte
}

// NewReceiptSigner wraps an existing P-256 key.
func NewReceiptSigner(key *ecdsa.PrivateKey) (*ReceiptSigner, error) {
	if key == nil {
		return nil, errors.New("nil signing key")
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must be P-256, got %s", key.Curve.Params().Name)
	}
	signer, err := cose.NewSigner(ReceiptAlgorithm, key)
	if err != nil {
		return nil, fmt.Errorf("create COSE signer: %w", err)
	}
	keyID, err := KeyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &ReceiptSigner{
		privateKey: key,
		PublicKey:  &key.PublicKey,
		signer:     signer,
		keyID:      keyID,
	}, nil
}

// GenerateReceiptSigner creates a signer with a fresh key.
func GenerateReceiptSigner() (*ReceiptSigner, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return NewReceiptSigner(key)
}

// LoadOrCreateReceiptSigner reads a PEM encoded EC private key from path,
// generating and storing one if the file does not exist.
func LoadOrCreateReceiptSigner(path string) (*ReceiptSigner, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		signer, err := GenerateReceiptSigner()
		if err != nil {
			return nil, err
		}
		der, err := x509.MarshalECPrivateKey(signer.privateKey)
		if err != nil {
			return nil, fmt.Errorf("marshal signing key: %w", err)
		}
		block := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
		if err := os.WriteFile(path, block, 0o600); err != nil {
			return nil, fmt.Errorf("write signing key: %w", err)
		}
		return signer, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return nil, fmt.Errorf("%s: no EC PRIVATE KEY block", path)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return NewReceiptSigner(key)
}

// PublicKeyPEM returns the verification key in PEM format.
func (s *ReceiptSigner) PublicKeyPEM() (string, error) {
	return PublicKeyPEM(s.PublicKey)
}

// KeyID returns the key identifier placed in receipt headers.
func (s *ReceiptSigner) KeyID() string { return hex.EncodeToString(s.keyID) }

// Sign encodes r and wraps it in a COSE_Sign1 envelope.
func (s *ReceiptSigner) Sign(r *Receipt) (ReceiptCOSE, error) {
	payload, err := r.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(ReceiptAlgorithm)
	msg.Headers.Protected[cose.HeaderLabelContentType] = "application/cbor"
	msg.Headers.Unprotected[cose.HeaderLabelKeyID] = s.keyID
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, s.signer); err != nil {
		return nil, fmt.Errorf("sign receipt: %w", err)
	}
	data, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("encode COSE_Sign1: %w", err)
	}
	return ReceiptCOSE(data), nil
}

// PublicKeyPEM encodes a P-256 public key in PKIX PEM format.
func PublicKeyPEM(key *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ParsePublicKeyPEM decodes a PEM public key produced by PublicKeyPEM.
func ParsePublicKeyPEM(data []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, errors.New("no PUBLIC KEY block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	ecKey, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, not ECDSA", pub)
	}
	return ecKey, nil
}

// KeyID derives a short identifier from the PKIX encoding of key:
// the first 8 bytes of its keccak256 hash.
func KeyID(key *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return crypto.Keccak256(der)[:8], nil
}

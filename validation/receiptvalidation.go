package validation

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/blindauction/api"
	"github.com/cloudx-io/blindauction/core"
)

// ValidateReceipt verifies a settlement receipt and checks it against what
// the bidder knows:
// - Signature and key id match the daemon key
// - Auction and bidder match
// - Commit address matches the bidder's own (value, witness)
// - Amount matches the bid
// - Winner/loser outcome matches the expectation
// - Status hash matches the status delivered with the receipt
//
// Returns:
//   - ReceiptValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed key or receipt)
func ValidateReceipt(input *ReceiptValidationInput) (*ReceiptValidationResult, error) {
	publicKey, err := api.ParsePublicKeyPEM([]byte(input.PublicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	coseBytes, err := input.Receipt.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	payload, err := ExtractCOSEPayload(coseBytes)
	if err != nil {
		return nil, err
	}
	receipt, err := api.UnmarshalReceipt(payload)
	if err != nil {
		return nil, err
	}

	result := &ReceiptValidationResult{Receipt: receipt}

	kid, err := VerifyCOSESignature(input.Receipt, publicKey)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Signature verification failed: %v", err))
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Signature verification passed")

		result.KeyIDValid, err = keyIDMatches(kid, publicKey)
		if err != nil {
			return nil, err
		}
		if result.KeyIDValid {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Key id matches: %x", kid))
		} else {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Key id mismatch: receipt has %x", kid))
		}
	}

	result.AuctionValid = validateAddress("Auction", input.Auction, receipt.Auction, result)
	result.BidderValid = validateAddress("Bidder", input.Bidder, receipt.Bidder, result)
	result.CommitAddressValid = validateCommitAddress(input, receipt, result)
	result.AmountValid = validateAmount(input, receipt, result)
	result.OutcomeValid = validateOutcome(input, receipt, result)
	result.StatusHashValid = validateStatusHash(input, receipt, result)

	return result, nil
}

func validateAddress(label string, expected common.Address, attested string, result *ReceiptValidationResult) bool {
	if expected == (common.Address{}) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("%s not checked", label))
		return true
	}
	if strings.EqualFold(expected.Hex(), attested) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("%s validation passed: %s", label, attested))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("%s mismatch: expected %s, receipt has %s", label, expected.Hex(), attested))
	return false
}

func validateCommitAddress(input *ReceiptValidationInput, receipt *api.Receipt, result *ReceiptValidationResult) bool {
	if input.Value == "" || input.Witness == nil {
		result.ValidationDetails = append(result.ValidationDetails, "Commit address not checked (value or witness missing)")
		return true
	}
	value, err := api.ParseEther(input.Value)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Commit address not computable: %v", err))
		return false
	}

	auction := common.HexToAddress(receipt.Auction)
	computed, err := core.CommitAddress(auction, value, *input.Witness, input.Bidder)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Commit address not computable: %v", err))
		return false
	}
	if strings.EqualFold(computed.Hex(), receipt.CommitAddress) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Commit address validation passed: %s", computed.Hex()))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Commit address mismatch: computed %s, receipt has %s", computed.Hex(), receipt.CommitAddress))
	return false
}

func validateAmount(input *ReceiptValidationInput, receipt *api.Receipt, result *ReceiptValidationResult) bool {
	if input.Value == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Amount not checked")
		return true
	}
	value, err := api.ParseEther(input.Value)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Amount not parseable: %v", err))
		return false
	}
	if value.Dec() == receipt.Amount {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Amount validation passed: %s ether", input.Value))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Amount mismatch: expected %s wei, receipt has %s wei", value.Dec(), receipt.Amount))
	return false
}

func validateOutcome(input *ReceiptValidationInput, receipt *api.Receipt, result *ReceiptValidationResult) bool {
	if input.IsWinner == nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Outcome not checked (receipt kind %s)", receipt.Kind))
		return true
	}

	won := receipt.Kind == api.ReceiptFinalizeWinner
	lost := receipt.Kind == api.ReceiptFinalizeLoser
	switch {
	case *input.IsWinner && won:
		result.ValidationDetails = append(result.ValidationDetails, "Winner validation passed: deposit settled to the auction")
		return true
	case !*input.IsWinner && lost:
		result.ValidationDetails = append(result.ValidationDetails, "Winner validation passed: deposit refunded as expected")
		return true
	case !won && !lost:
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Winner validation failed: receipt kind %s is not a settlement", receipt.Kind))
	case *input.IsWinner:
		result.ValidationDetails = append(result.ValidationDetails, "Winner validation failed: expected to win, but was refunded")
	default:
		result.ValidationDetails = append(result.ValidationDetails, "Winner validation failed: expected to lose, but settled as winner")
	}
	return false
}

func validateStatusHash(input *ReceiptValidationInput, receipt *api.Receipt, result *ReceiptValidationResult) bool {
	if input.Status == nil {
		result.ValidationDetails = append(result.ValidationDetails, "Status hash not checked")
		return true
	}

	status, err := statusFromView(input.Status)
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Status not parseable: %v", err))
		return false
	}

	computed := core.ComputeStatusHash(status).Hex()
	if strings.EqualFold(computed, receipt.StatusHash) {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Status hash validation passed: %s", computed))
		return true
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Status hash mismatch: computed %s, receipt has %s", computed, receipt.StatusHash))
	return false
}

func statusFromView(view *api.StatusView) (core.Status, error) {
	highestBid, err := api.ParseEther(view.HighestBid)
	if err != nil {
		return core.Status{}, fmt.Errorf("highest bid: %w", err)
	}
	custody, err := api.ParseEther(view.Custody)
	if err != nil {
		return core.Status{}, fmt.Errorf("custody: %w", err)
	}
	return core.Status{
		Address:         view.Address,
		Phase:           view.Phase,
		BlockNumber:     view.BlockNumber,
		StartBlock:      view.StartBlock,
		RevealBlock:     view.RevealBlock,
		FinalizeBlock:   view.FinalizeBlock,
		HighestBid:      highestBid,
		HighestBidder:   view.HighestBidder,
		Winner:          view.Winner,
		ActivationNonce: view.ActivationNonce,
		Reveals:         view.Reveals,
		FinalizedCount:  view.FinalizedCount,
		Custody:         custody,
	}, nil
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/cloudx-io/blindauction/api"
	"github.com/cloudx-io/blindauction/validation"
)

func main() {
	var (
		responseInput  = flag.String("response", "", "Daemon response JSON carrying the receipt (file path or inline JSON)")
		publicKeyInput = flag.String("public-key", "", "Receipt public key PEM (file path or inline PEM)")
		auction        = flag.String("auction", "", "Expected auction address")
		bidder         = flag.String("bidder", "", "Bidder address")
		value          = flag.String("value", "", "Bid value in ether, e.g. 0.005")
		witness        = flag.String("witness", "", "Bid witness (0x-hex, 32 bytes)")
		outcome        = flag.String("outcome", "", "Expected outcome: win, lose, or empty to skip")
		outputFormat   = flag.String("format", "text", "Output format: text or json")
		help           = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *responseInput == "" || *publicKeyInput == "" || *bidder == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --response, --public-key and --bidder are required\n")
		os.Exit(1)
	}

	responseJSON, err := readInput(*responseInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading response: %v\n", err)
		os.Exit(2)
	}
	publicKeyPEM, err := readInput(*publicKeyInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading public key: %v\n", err)
		os.Exit(2)
	}

	input, err := buildValidationInput(responseJSON, publicKeyPEM, *auction, *bidder, *value, *witness, *outcome)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting validation data: %v\n", err)
		os.Exit(2)
	}

	result, err := validation.ValidateReceipt(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Auction Receipt Validator")
	fmt.Println()
	fmt.Println("Verifies a signed reveal or settlement receipt issued by auctiond.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-validator --response <json> --public-key <pem> --bidder <address> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --response <json>                 Daemon response with \"receipt\" (and optionally \"status\")")
	fmt.Println("  --public-key <pem>                Receipt key from a key_request")
	fmt.Println("  --bidder <address>                Your bidding address")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --auction <address>               Expected auction address")
	fmt.Println("  --value <ether>                   Your bid, checked against the receipt amount")
	fmt.Println("  --witness <hex>                   Your witness, with --value recomputes the commit address")
	fmt.Println("  --outcome <win|lose>              Expected settlement outcome")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  receipt-validator \\")
	fmt.Println("    --response finalize.json \\")
	fmt.Println("    --public-key receipt.pub \\")
	fmt.Println("    --bidder 0x000000000000000000000000000000000000000b \\")
	fmt.Println("    --value 0.007 --witness 0x...0151cd --outcome win")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readInput(input string) ([]byte, error) {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data, nil
	}
	return []byte(input), nil
}

func buildValidationInput(responseJSON, publicKeyPEM []byte, auction, bidder, value, witness, outcome string) (*validation.ReceiptValidationInput, error) {
	var response api.Response
	if err := json.Unmarshal(responseJSON, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Receipt == "" {
		return nil, fmt.Errorf("response carries no receipt")
	}

	if !common.IsHexAddress(bidder) {
		return nil, fmt.Errorf("invalid bidder address %q", bidder)
	}
	input := &validation.ReceiptValidationInput{
		Receipt:      response.Receipt,
		PublicKeyPEM: string(publicKeyPEM),
		Bidder:       common.HexToAddress(bidder),
		Value:        value,
		Status:       response.Status,
	}

	if auction != "" {
		if !common.IsHexAddress(auction) {
			return nil, fmt.Errorf("invalid auction address %q", auction)
		}
		input.Auction = common.HexToAddress(auction)
	}

	if witness != "" {
		w := common.HexToHash(witness)
		input.Witness = &w
	}

	switch strings.ToLower(outcome) {
	case "":
	case "win":
		input.IsWinner = api.Bool(true)
	case "lose":
		input.IsWinner = api.Bool(false)
	default:
		return nil, fmt.Errorf("invalid outcome %q (want win or lose)", outcome)
	}
	return input, nil
}

func outputText(result *validation.ReceiptValidationResult) {
	fmt.Println("Auction Receipt Validator")
	fmt.Println("=========================")
	fmt.Println()

	if r := result.Receipt; r != nil {
		fmt.Println("Receipt:")
		fmt.Printf("  ID:                      %s\n", r.ID)
		fmt.Printf("  Kind:                    %s\n", r.Kind)
		fmt.Printf("  Block:                   %d\n", r.BlockNumber)
		fmt.Printf("  Amount (ether):          %s\n", formatWei(r.Amount))
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Key ID Valid:            %v\n", result.KeyIDValid)
	fmt.Printf("  Auction Valid:           %v\n", result.AuctionValid)
	fmt.Printf("  Bidder Valid:            %v\n", result.BidderValid)
	fmt.Printf("  Commit Address Valid:    %v\n", result.CommitAddressValid)
	fmt.Printf("  Amount Valid:            %v\n", result.AmountValid)
	fmt.Printf("  Outcome Valid:           %v\n", result.OutcomeValid)
	fmt.Printf("  Status Hash Valid:       %v\n", result.StatusHashValid)

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("=========================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
		fmt.Println("Exit Code: 0")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
		fmt.Println("Exit Code: 1")
	}
}

func outputJSON(result *validation.ReceiptValidationResult) {
	output := map[string]any{
		"valid":                result.IsValid(),
		"signature_valid":      result.SignatureValid,
		"key_id_valid":         result.KeyIDValid,
		"auction_valid":        result.AuctionValid,
		"bidder_valid":         result.BidderValid,
		"commit_address_valid": result.CommitAddressValid,
		"amount_valid":         result.AmountValid,
		"outcome_valid":        result.OutcomeValid,
		"status_hash_valid":    result.StatusHashValid,
		"receipt":              result.Receipt,
		"details":              result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}

func formatWei(wei string) string {
	amount, err := uint256.FromDecimal(wei)
	if err != nil {
		return wei + " wei"
	}
	return api.FormatEther(amount)
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/cloudx-io/blindauction/api"
	"github.com/cloudx-io/blindauction/chain"
	"github.com/cloudx-io/blindauction/core"
)

var errUnknownRequest = errors.New("unknown request type")

// Engine owns the ledger and the auction and applies requests to them. It
// is driven by a single goroutine (the Sequencer).
type Engine struct {
	ledger  *chain.Memory
	auction *core.Auction
	signer  *api.ReceiptSigner
	logger  log.Logger
}

// NewEngine creates a fresh ledger at cfg.GenesisHeight with the auction
// deployed at cfg.Auction. signer may be nil, in which case no receipts
// are issued.
func NewEngine(cfg Config, signer *api.ReceiptSigner, logger log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Root()
	}
	ledger := chain.NewMemory(cfg.GenesisHeight)
	auction, err := core.NewAuction(cfg.Auction, cfg.Engine, ledger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return &Engine{
		ledger:  ledger,
		auction: auction,
		signer:  signer,
		logger:  logger,
	}, nil
}

// Handle resolves and applies req and returns the response. Mutating
// requests that fail leave no trace in the ledger or the auction.
func (e *Engine) Handle(req api.Request) api.Response {
	return e.handle(e.Resolve(req), true)
}

// Replay applies a journalled request without issuing receipts.
func (e *Engine) Replay(req api.Request) error {
	resp := e.handle(e.Resolve(req), false)
	if !resp.Success {
		return fmt.Errorf("replay %s: %s", req.Type, resp.Message)
	}
	return nil
}

func (e *Engine) handle(req api.Request, issueReceipts bool) api.Response {
	startTime := time.Now()

	resp, err := e.dispatch(req, issueReceipts)
	if err != nil {
		e.logger.Debug("Request rejected", "type", req.Type, "from", req.From, "err", err)
		resp = api.ErrorResponse(req, err)
		if errors.Is(err, errUnknownRequest) {
			resp.Type = "error"
		}
	} else {
		resp.Type = api.ResponseType(req.Type)
		resp.RequestID = req.RequestID
		resp.Success = true
		// Changes of a completed request are final
		e.ledger.Commit()
	}
	resp.ProcessingTime = time.Since(startTime).Milliseconds()
	return resp
}

func (e *Engine) dispatch(req api.Request, issueReceipts bool) (api.Response, error) {
	switch req.Type {
	case api.TypePing:
		return api.Response{Message: "auction daemon is healthy", BlockNumber: e.ledger.BlockNumber()}, nil

	case api.TypeKeyRequest:
		if e.signer == nil {
			return api.Response{}, errors.New("receipts are disabled")
		}
		pemText, err := e.signer.PublicKeyPEM()
		if err != nil {
			return api.Response{}, fmt.Errorf("failed to export public key: %w", err)
		}
		return api.Response{PublicKey: pemText, Message: e.signer.KeyID()}, nil

	case api.TypeStatus:
		return api.Response{Status: api.NewStatusView(e.auction), BlockNumber: e.ledger.BlockNumber()}, nil

	case api.TypeCommitAddress:
		value, err := req.Amount()
		if err != nil {
			return api.Response{}, err
		}
		addr, err := e.auction.CommitAddress(value, req.Witness, req.From)
		if err != nil {
			return api.Response{}, err
		}
		return api.Response{Address: &addr}, nil

	case api.TypeCheckBid:
		value, err := req.Amount()
		if err != nil {
			return api.Response{}, err
		}
		return api.Response{Valid: api.Bool(e.auction.CheckBid(value, req.Witness, req.From))}, nil

	case api.TypeFund:
		value, err := req.Amount()
		if err != nil {
			return api.Response{}, err
		}
		e.ledger.Credit(req.From, value)
		e.logger.Debug("Account funded", "account", req.From, "value", value.Dec())
		return api.Response{Balance: api.FormatEther(e.ledger.Balance(req.From))}, nil

	case api.TypeDeposit:
		return e.deposit(req)

	case api.TypeMine:
		height := e.ledger.Mine(req.Blocks)
		e.logger.Debug("Blocks mined", "count", req.Blocks, "height", height, "phase", e.auction.Phase())
		return api.Response{BlockNumber: height}, nil

	case api.TypeRevealBid:
		value, err := req.Amount()
		if err != nil {
			return api.Response{}, err
		}
		if err := e.auction.RevealBid(e.call(req), value, req.Witness); err != nil {
			return api.Response{}, err
		}
		resp := api.Response{Status: api.NewStatusView(e.auction), BlockNumber: e.ledger.BlockNumber()}
		return resp, e.attachReceipt(&resp, api.ReceiptReveal, req, value, issueReceipts)

	case api.TypeFinalizeWinner, api.TypeFinalizeLoser:
		return e.finalize(req, issueReceipts)

	case api.TypeActivate:
		value, err := req.Amount()
		if err != nil {
			return api.Response{}, err
		}
		done, addr, err := e.auction.Activate(e.call(req), value, req.Witness)
		if err != nil {
			return api.Response{}, err
		}
		resp := api.Response{Done: api.Bool(done)}
		if done {
			resp.Address = &addr
		}
		return resp, nil

	default:
		return api.Response{}, fmt.Errorf("%w: %s", errUnknownRequest, req.Type)
	}
}

// Resolve fills in the defaults of req: a zero budget selects
// FinalizeMinGas and a zero block count mines one block. Resolved requests
// replay identically under a different configuration.
func (e *Engine) Resolve(req api.Request) api.Request {
	switch req.Type {
	case api.TypeRevealBid, api.TypeFinalizeWinner, api.TypeFinalizeLoser, api.TypeActivate:
		if req.Gas == 0 {
			req.Gas = e.auction.FinalizeMinGas()
		}
	case api.TypeMine:
		if req.Blocks == 0 {
			req.Blocks = 1
		}
	}
	return req
}

func (e *Engine) call(req api.Request) core.Call {
	return core.Call{From: req.From, Gas: req.Gas}
}

func (e *Engine) deposit(req api.Request) (api.Response, error) {
	value, err := req.Amount()
	if err != nil {
		return api.Response{}, err
	}
	to, err := e.auction.CommitAddress(value, req.Witness, req.From)
	if err != nil {
		return api.Response{}, err
	}
	if phase := e.auction.Phase(); phase != core.PhaseCommit {
		// Late deposits are accepted by the ledger but can never be revealed
		e.logger.Warn("Deposit outside commit phase", "bidder", req.From, "phase", phase)
	}
	if err := e.ledger.Transfer(req.From, to, value); err != nil {
		return api.Response{}, err
	}
	e.logger.Info("Deposit received", "bidder", req.From, "address", to)
	return api.Response{
		Address: &to,
		Balance: api.FormatEther(e.ledger.Balance(req.From)),
	}, nil
}

func (e *Engine) finalize(req api.Request, issueReceipts bool) (api.Response, error) {
	value, err := req.Amount()
	if err != nil {
		return api.Response{}, err
	}

	kind := api.ReceiptFinalizeWinner
	fn := e.auction.FinalizeWinner
	if req.Type == api.TypeFinalizeLoser {
		kind = api.ReceiptFinalizeLoser
		fn = e.auction.FinalizeLoser
	}

	done, err := fn(e.call(req), value, req.Witness)
	if err != nil {
		return api.Response{}, err
	}
	resp := api.Response{Done: api.Bool(done), BlockNumber: e.ledger.BlockNumber()}
	if !done {
		resp.Message = "activation incomplete, retry"
		return resp, nil
	}
	resp.Status = api.NewStatusView(e.auction)
	return resp, e.attachReceipt(&resp, kind, req, value, issueReceipts)
}

// attachReceipt signs a receipt for a completed reveal or settlement and
// binds it to the status in resp.
func (e *Engine) attachReceipt(resp *api.Response, kind string, req api.Request, value *uint256.Int, issue bool) error {
	if !issue || e.signer == nil {
		return nil
	}
	commit, err := e.auction.CommitAddress(value, req.Witness, req.From)
	if err != nil {
		return err
	}

	receipt := api.NewReceipt(kind, e.auction.Address(), req.From, commit, value, e.ledger.BlockNumber())
	receipt.HighestBidder = e.auction.HighestBidder().Hex()
	receipt.HighestBid = e.auction.HighestBid().Dec()
	if winner := e.auction.Winner(); winner != (common.Address{}) {
		receipt.Winner = winner.Hex()
	}
	if resp.Status != nil {
		receipt.StatusHash = resp.Status.StatusHash.Hex()
	}

	envelope, err := e.signer.Sign(receipt)
	if err != nil {
		// The state change stands; only the receipt is missing
		e.logger.Error("Receipt signing failed", "kind", kind, "bidder", req.From, "err", err)
		resp.Message = fmt.Sprintf("receipt unavailable: %v", err)
		return nil
	}
	resp.Receipt = envelope.EncodeBase64()
	e.logger.Debug("Receipt issued", "id", receipt.ID, "kind", kind, "bidder", req.From)
	return nil
}

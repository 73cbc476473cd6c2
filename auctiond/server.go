package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/mdlayher/vsock"

	"github.com/cloudx-io/blindauction/api"
)

// Server accepts one JSON request per connection and answers through the
// sequencer.
type Server struct {
	seq         *Sequencer
	maxWorkers  int
	readTimeout time.Duration
	logger      log.Logger
}

func NewServer(seq *Sequencer, maxWorkers int, readTimeout time.Duration, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Root()
	}
	return &Server{
		seq:         seq,
		maxWorkers:  maxWorkers,
		readTimeout: readTimeout,
		logger:      logger,
	}
}

// Listen opens a vsock listener when a vsock port is configured and a TCP
// listener otherwise.
func Listen(cfg Config) (net.Listener, error) {
	if cfg.VsockPort != 0 {
		listener, err := vsock.Listen(cfg.VsockPort, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vsock listener: %w", err)
		}
		return listener, nil
	}
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to create tcp listener: %w", err)
	}
	return listener, nil
}

// Serve accepts connections until ctx is cancelled. Connections beyond
// maxWorkers concurrent ones are closed immediately.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			s.logger.Debug("Listener close", "err", err)
		}
	}()

	s.logger.Info("Auction daemon listening", "addr", listener.Addr(), "workers", s.maxWorkers)
	semaphore := make(chan struct{}, s.maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("Failed to accept connection", "err", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(ctx, c)
			}(conn)
		default:
			s.logger.Info("No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				s.logger.Error("Failed to close rejected connection", "err", err)
			}
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in handleConnection", "panic", r)
		}
		if err := conn.Close(); err != nil {
			s.logger.Debug("Failed to close connection", "err", err)
		}
	}()

	_ = conn.SetDeadline(time.Now().Add(s.readTimeout))

	var req api.Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.logger.Warn("Failed to decode request", "remote", conn.RemoteAddr(), "err", err)
		s.writeResponse(conn, api.Response{
			Type:    "error",
			Message: fmt.Sprintf("Failed to decode request: %v", err),
		})
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	logger := s.logger.With("type", req.Type, "request", req.RequestID)
	logger.Debug("Received request", "from", req.From)

	resp, err := s.seq.Submit(ctx, req)
	if err != nil {
		resp = api.ErrorResponse(req, err)
	}
	if resp.Success {
		logger.Debug("Request processed", "ms", resp.ProcessingTime)
	} else {
		logger.Info("Request failed", "message", resp.Message)
	}
	s.writeResponse(conn, resp)
}

func (s *Server) writeResponse(conn net.Conn, resp api.Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Error("Failed to encode response", "err", err)
	}
}

// runMiner submits a mine request every interval until ctx ends.
func runMiner(ctx context.Context, seq *Sequencer, interval time.Duration, logger log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := seq.Submit(ctx, api.Request{Type: api.TypeMine, Blocks: 1, RequestID: uuid.NewString()})
			if err != nil {
				return
			}
			logger.Trace("Block mined", "height", resp.BlockNumber)
		}
	}
}

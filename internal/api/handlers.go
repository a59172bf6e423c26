package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"carbonPool/internal/model"
	"carbonPool/internal/pool"
)

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	provider, err := parseAddress(req.Provider)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ev, err := s.venue.Pool.AddLiquidity(r.Context(), provider, amount)
	s.respondEvent(w, r, pool.EventDeposit, ev, err)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	provider, err := parseAddress(req.Provider)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	shares, err := parseAmount(req.Shares)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ev, err := s.venue.Pool.WithdrawLiquidity(r.Context(), provider, shares)
	s.respondEvent(w, r, pool.EventWithdraw, ev, err)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	seller, err := parseAddress(req.Seller)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	credits, err := parseAmount(req.Credits)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ev, err := s.venue.Pool.SellCredits(r.Context(), seller, credits)
	s.respondEvent(w, r, pool.EventSell, ev, err)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	buyer, err := parseAddress(req.Buyer)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	credits, err := parseAmount(req.Credits)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	paid, err := parseAmount(req.Paid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ev, err := s.venue.Pool.BuyCredits(r.Context(), buyer, credits, paid)
	s.respondEvent(w, r, pool.EventBuy, ev, err)
}

// handleApprove lets owner allow the pool to pull credits on a sell.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.venue.Credits.Approve(r.Context(), owner, s.venue.Pool.Address(), amount); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.checkpoint(r); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "approved"})
}

func (s *Server) handleBindShares(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.venue.Pool.BindShareLedger(r.Context(), caller, s.venue.Shares); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "bound"})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	amount := new(uint256.Int)
	if req.Amount != "" {
		if amount, err = parseAmount(req.Amount); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	ev, err := s.venue.Pool.SweepCredits(r.Context(), caller, recipient, amount)
	s.respondEvent(w, r, pool.EventSweep, ev, err)
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	h, err := s.venue.Pool.Holdings(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PoolResponse{
		Info:    s.venue.Info,
		State:   h.State.Record(),
		Custody: h.Custody.Dec(),
		Credits: h.Credits.Dec(),
		Surplus: h.Surplus().Dec(),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := r.Context()
	reserve, err := s.venue.Bank.BalanceOf(ctx, account)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	credits, err := s.venue.Credits.BalanceOf(ctx, account)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	shares, err := s.venue.Shares.BalanceOf(ctx, account)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, AccountResponse{
		Address:   account.Hex(),
		Reserve:   reserve.Dec(),
		Credits:   credits.Dec(),
		Shares:    shares.Dec(),
		Allowance: s.venue.Credits.Allowance(account, s.venue.Pool.Address()).Dec(),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	credits, err := parseAmount(r.URL.Query().Get("credits"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	q, err := s.venue.Pool.Quote(credits)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, QuoteResponse{
		Credits: q.Credits.Dec(),
		Gross:   q.Gross.Dec(),
		Fee:     q.Fee.Dec(),
		Net:     q.Net.Dec(),
	})
}

// handleEvents returns decoded journal events starting at ?from (default 1).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.venue.Journal == nil {
		respondJSON(w, http.StatusOK, []model.TypedEvent{})
		return
	}
	from, err := parseUintParam(r, "from", 1)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := parseUintParam(r, "limit", 100)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if limit == 0 || limit > s.cfg.MaxEvents {
		limit = s.cfg.MaxEvents
	}
	if from == 0 {
		from = 1
	}
	to := from + limit - 1
	if to < from {
		to = ^uint64(0)
	}

	events := make([]model.TypedEvent, 0)
	err = s.venue.Journal.Events(from, to, func(rec model.LogRecord) error {
		typed, err := s.decoder.Decode(rec)
		if err != nil {
			return err
		}
		events = append(events, *typed)
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (s *Server) respondEvent(w http.ResponseWriter, r *http.Request, kind pool.EventKind, ev pool.Event, err error) {
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveFailure(kind, err)
		}
		s.logger.Info("operation rejected",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ev.Record())
}

func (s *Server) checkpoint(r *http.Request) error {
	if s.venue.Journal == nil {
		return nil
	}
	if err := s.venue.Journal.Checkpoint(r.Context()); err != nil {
		return fmt.Errorf("checkpoint ledgers: %w", err)
	}
	return nil
}

func parseAddress(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: %q", pool.ErrInvalidAddress, input)
	}
	return common.HexToAddress(input), nil
}

func parseAmount(input string) (*uint256.Int, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: amount is required", pool.ErrInvalidAmount)
	}
	amount, err := uint256.FromDecimal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", pool.ErrInvalidAmount, input, err)
	}
	return amount, nil
}

func parseUintParam(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	val, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return val, nil
}

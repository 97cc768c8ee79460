package http_server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/code-payments/token-escrow/pkg/code/common"
	"github.com/code-payments/token-escrow/pkg/code/data/escrow"
	"github.com/code-payments/token-escrow/pkg/database/query"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

func (s *server) getEscrow(c *gin.Context) {
	log := s.logger(c).WithField("method", "getEscrow")

	address, err := common.NewAccountFromPublicKeyString(c.Param("address"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid escrow address")
		return
	}
	log = log.WithField("escrow", address.String())

	record, err := s.data.GetByAddress(c.Request.Context(), address.String())
	switch err {
	case nil:
	case escrow.ErrEscrowNotFound:
		abortWithError(c, http.StatusNotFound, "escrow not found")
		return
	default:
		log.WithError(err).Warn("failure getting escrow record")
		abortWithError(c, http.StatusInternalServerError, "")
		return
	}

	now := s.ledger.UnixTimestamp()
	c.JSON(http.StatusOK, &getEscrowResponse{
		Escrow: toEscrowResponse(record, now),
		Now:    now,
	})
}

func (s *server) listEscrows(c *gin.Context) {
	log := s.logger(c).WithField("method", "listEscrows")

	sender := c.Query("sender")
	receiver := c.Query("receiver")
	if (len(sender) == 0) == (len(receiver) == 0) {
		abortWithError(c, http.StatusBadRequest, "exactly one of sender or receiver is required")
		return
	}

	owner := sender
	if len(receiver) > 0 {
		owner = receiver
	}
	if _, err := common.NewAccountFromPublicKeyString(owner); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid owner address")
		return
	}

	limit := uint64(defaultPageSize)
	if value := c.Query("limit"); len(value) > 0 {
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil || parsed == 0 || parsed > maxPageSize {
			abortWithError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	direction := query.ToOrderingWithFallback(c.Query("order"), query.Ascending)

	cursor := query.EmptyCursor
	if value := c.Query("cursor"); len(value) > 0 {
		parsed, err := query.FromBase58(value)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = parsed
	}

	var records []*escrow.Record
	var err error
	if len(sender) > 0 {
		records, err = s.data.GetAllBySender(c.Request.Context(), sender, cursor, limit, direction)
	} else {
		records, err = s.data.GetAllByReceiver(c.Request.Context(), receiver, cursor, limit, direction)
	}
	if err != nil && err != escrow.ErrEscrowNotFound {
		log.WithError(err).Warn("failure getting escrow records")
		abortWithError(c, http.StatusInternalServerError, "")
		return
	}

	now := s.ledger.UnixTimestamp()
	resp := &listEscrowsResponse{
		Escrows: make([]*escrowResponse, len(records)),
		Now:     now,
	}
	for i, record := range records {
		resp.Escrows[i] = toEscrowResponse(record, now)
	}
	if uint64(len(records)) == limit {
		resp.NextCursor = query.ToCursor(records[len(records)-1].Id).ToBase58()
	}

	c.JSON(http.StatusOK, resp)
}

func (s *server) getVault(c *gin.Context) {
	log := s.logger(c).WithField("method", "getVault")

	receiver, err := common.NewAccountFromPublicKeyString(c.Param("receiver"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid receiver address")
		return
	}

	mint, err := common.NewAccountFromPublicKeyString(c.Query("mint"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid mint address")
		return
	}

	vault, err := s.getVaultAccounts(receiver, mint)
	if err != nil {
		log.WithError(err).Warn("failure deriving vault accounts")
		abortWithError(c, http.StatusInternalServerError, "")
		return
	}

	c.JSON(http.StatusOK, &vaultResponse{
		Receiver:           vault.Receiver.String(),
		Mint:               vault.Mint.String(),
		VaultAuthority:     vault.Authority.String(),
		VaultAuthorityBump: vault.AuthorityBump,
		VaultTokenAccount:  vault.TokenAccount.String(),
	})
}

package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/gigbroker-backend/api/responses"
	"github.com/angelmondragon/gigbroker-backend/internal/contracts"
	"github.com/angelmondragon/gigbroker-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/gigbroker-backend/pkg/errors"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
)

const maxStatementLimit = 100

// GetBalance returns the actor's available and pending escrow totals.
func GetBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// GetStatement lists the actor's most recent ledger entries.
func GetStatement(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit := 0
		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 || value > maxStatementLimit {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and 100"))
				return
			}
			limit = value
		}

		entries, err := svc.Statement(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// ContractLedger lists the money movements recorded against one contract.
// The contract lookup doubles as the party check.
func ContractLedger(contractSvc contracts.Service, ledgerSvc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contractID, err := uuidParam(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := contractSvc.Get(r.Context(), contractID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := ledgerSvc.EntriesForSource(r.Context(), contractID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

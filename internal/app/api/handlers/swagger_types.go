package handlers

import (
	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/statistics"
	"github.com/fatflowers/creditledger/pkg/response"
	types "github.com/fatflowers/creditledger/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespCreditBalance wraps a user's balance in the standard envelope.
type RespCreditBalance struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    types.CreditBalance      `json:"data"`
}

// RespCheckCredits wraps the affordability check in the standard envelope.
type RespCheckCredits struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ledger.CheckResult       `json:"data"`
}

// RespDeductCredits wraps the deduction result in the standard envelope.
type RespDeductCredits struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ledger.DeductResult      `json:"data"`
}

// RespUsageHistory wraps a page of ledger entries in the standard envelope.
type RespUsageHistory struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ledger.HistoryPage       `json:"data"`
}

// RespListLedgerEntries wraps the admin ledger scan in the standard envelope.
type RespListLedgerEntries struct {
	Code    response.APIResponseCode             `json:"code"`
	Message string                               `json:"message"`
	Data    statistics.ScanLedgerEntriesResponse `json:"data"`
}

// RespCreditStatistic wraps CreditStatisticResponse in the standard envelope.
type RespCreditStatistic struct {
	Code    response.APIResponseCode           `json:"code"`
	Message string                             `json:"message"`
	Data    statistics.CreditStatisticResponse `json:"data"`
}

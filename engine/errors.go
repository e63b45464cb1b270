package engine

import "errors"

var (
	ErrInvalidSignature     = errors.New("notification signature invalid")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrContractorNotFound   = errors.New("contractor not found")
	ErrContractorNoPhone    = errors.New("contractor has no phone number")
	ErrMissingDealID        = errors.New("payment has no deal id")
	ErrMissingContractor    = errors.New("payment has no contractor")
	ErrMissingPartnerID     = errors.New("contractor is not registered as a gateway partner")
	ErrInvalidPayoutRequest = errors.New("payout requires a deal id and a positive amount")
	ErrPayoutFailed         = errors.New("payout dispatch failed")
)

package models

import "errors"

var (
	ErrAccountRequired         = errors.New("account id is required")
	ErrInvalidFactors          = errors.New("invalid risk factors")
	ErrAlertNotFound           = errors.New("alert not found")
	ErrInvalidStatusTransition = errors.New("invalid alert status transition")
	ErrSyncInProgress          = errors.New("sync already in progress for account")
	ErrAlertBusy               = errors.New("alert is being updated")
)

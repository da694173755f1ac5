package transfer

import "errors"

var (
	ErrAmountOutOfRange   = errors.New("transfer amount out of allowed range")
	ErrBonusDisabled      = errors.New("bonus balance transfers are disabled")
	ErrCharacterNotOwned  = errors.New("game account is not linked to this user")
	ErrGameUnavailable    = errors.New("game server database unavailable")
	ErrCharacterNotFound  = errors.New("character not found on this account")
	ErrCharacterOnline    = errors.New("character must be offline")
	ErrInProgress         = errors.New("identical transfer already in progress")
	ErrDuplicate          = errors.New("identical transfer already completed")
	ErrRemoteFailed       = errors.New("game server mutation failed, wallet reverted")
	ErrCompensationFailed = errors.New("compensating reversal failed")
)

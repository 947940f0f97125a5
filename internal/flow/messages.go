package flow

// Fixed response texts. Placeholders are filled with fmt.Sprintf.
const (
	msgIdleHint = "No action in progress. Use /buy, /sell, /withdraw or /settings."

	msgCancelled = "Cancelled."

	msgNoNativeFunds = "Your wallet has no funds yet. Deposit some native currency first."

	msgBuyAskToken      = "Which token do you want to buy? Send the contract address."
	msgBuyAskAmount     = "How much do you want to spend on %s? Available: %s. Send the amount."
	msgBuyConfirm       = "Buy %s %s for %s native?\nEstimated gas: %d"
	msgBuyExecuted      = "Done. You received %s %s.\nTx: %s"
	msgBuyFailed        = "The swap transaction failed on-chain. Gas was consumed.\nTx: %s"
	msgInvalidToken     = "That does not look like a token address. Send a 0x… contract address."
	msgInvalidAmount    = "That is not a valid amount. Use a plain decimal like 0.5."
	msgAmountOverBal    = "That exceeds your available balance of %s."
	msgAmountTooPrecise = "Too many decimal places for this token (max %d)."

	msgNothingToSell = "Nothing to sell: no tokens with a positive balance in your trade history."
	msgSellPickToken = "Which token do you want to sell?"
	msgSellAskAmount = "How much %s do you want to sell? Balance: %s. Send an amount or \"max\"."
	msgSellConfirm   = "Sell %s %s for ~%s native?\nEstimated gas: %d"
	msgSellExecuted  = "Done. You received %s native.\nTx: %s"
	msgSellFailed    = "The swap transaction failed on-chain. Gas was consumed.\nTx: %s"
	msgUnknownToken  = "That token is not in your sell list."

	msgWithdrawAskAddress = "Where to? Send the destination address."
	msgWithdrawAskAmount  = "How much to withdraw? Available: %s native. Send the amount."
	msgWithdrawFeeShort   = "Not enough left to cover the network fee. Reduce the amount."
	msgWithdrawConfirm    = "Withdraw %s native to %s?"
	msgWithdrawExecuted   = "Sent %s native to %s.\nTx: %s"
	msgWithdrawFailed     = "The withdrawal failed on-chain. Gas was consumed.\nTx: %s"
	msgInvalidAddress     = "That does not look like a valid address. Try again."

	msgAskSlippage      = "Current slippage tolerance: %.2f%%, gas priority: %s.\nSend a new slippage value in (0, 50], or pick a gas priority."
	msgInvalidSlippage  = "Slippage must be a number greater than 0 and at most 50."
	msgSlippageSaved    = "Slippage tolerance set to %.2f%%."
	msgInvalidGasTier   = "Pick one of the gas priority buttons."
	msgGasPrioritySaved = "Gas priority set to %s."

	msgConfirmButtons = "Use the buttons to confirm or cancel."

	btnConfirm = "Confirm"
	btnCancel  = "Cancel"

	// Callback tokens for confirm-state keyboards.
	cbConfirm = "confirm"
	cbCancel  = "cancel"
	// cbTokenPrefix prefixes sell token selection callbacks.
	cbTokenPrefix = "token:"
	// cbGasPrefix prefixes gas priority callbacks on the settings screen.
	cbGasPrefix = "gas:"
)

func confirmKeyboard() [][]Button {
	return [][]Button{{
		{Label: btnConfirm, Data: cbConfirm},
		{Label: btnCancel, Data: cbCancel},
	}}
}

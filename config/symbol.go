package config

import "strings"

// NormalizeSymbol converts the pair spellings users commonly type into the
// Binance form: upper case, no separators, BTC instead of XBT.
//
//	btc-usdt  -> BTCUSDT
//	BTC/USDT  -> BTCUSDT
//	XBT_USDT  -> BTCUSDT
func NormalizeSymbol(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	for _, sep := range []string{"-", "/", "_", " "} {
		sym = strings.ReplaceAll(sym, sep, "")
	}
	if strings.HasPrefix(sym, "XBT") {
		sym = "BTC" + sym[3:]
	}
	return sym
}

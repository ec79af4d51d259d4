package domain

// QuoteCurrency is the currency the simulated account settles in.
const QuoteCurrency = "USD"

// QuoteKeys returns the price-cache keys tried, in order, when resolving a
// user-supplied symbol: the symbol itself, then the symbol quoted in USD.
// "BTC" and "BTC/USD" therefore trade the same instrument.
func QuoteKeys(symbol string) [2]string {
	return [2]string{symbol, symbol + "/" + QuoteCurrency}
}

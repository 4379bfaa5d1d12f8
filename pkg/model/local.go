package model

// RouterHandle is an opaque, read-only handle on a chain's local quoting router.
type RouterHandle interface {
	ChainID() ChainID
}

// LocalQuoteParams restricts which protocols the local engine may probe.
type LocalQuoteParams struct {
	Protocols []Protocol
}

// LocalQuoteResult is the local engine's answer. Data is set only when State is QuoteStateSuccess.
type LocalQuoteResult struct {
	State QuoteState
	Data  *ClassicQuoteData
}

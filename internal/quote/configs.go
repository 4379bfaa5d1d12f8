package quote

import "github.com/Checker-Finance/swap-router/pkg/model"

// BuildConfigs returns the provider configurations to request for req.
//
// Classic is always present. Synthetic is added, ahead of classic, when the
// caller has not pinned the routing API (api) or asked for a price probe
// (price), and the origin chain supports synthetic orders.
func BuildConfigs(req model.QuoteRequest, syntheticChains map[model.ChainID]struct{}) []model.ProviderConfig {
	classic := model.ClassicConfig{
		Protocols:                      model.AllProtocols(),
		EnableUniversalRouter:          true,
		Recipient:                      req.Account,
		EnableFeeOnTransferFeeFetching: true,
	}

	if !wantsSynthetic(req, syntheticChains) {
		return []model.ProviderConfig{classic}
	}

	synthetic := model.SyntheticConfig{
		UseSyntheticQuotes: req.ForceSyntheticQuotes || req.RouterPreference == model.RouterPreferenceSynthetic,
		Swapper:            req.Account,
		Recipient:          req.Account,
	}
	return []model.ProviderConfig{synthetic, classic}
}

func wantsSynthetic(req model.QuoteRequest, syntheticChains map[model.ChainID]struct{}) bool {
	switch req.RouterPreference {
	case model.RouterPreferenceAPI, model.RouterPreferencePrice:
		return false
	}
	_, ok := syntheticChains[req.TokenInChainID]
	return ok
}

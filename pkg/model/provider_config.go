package model

import "encoding/json"

// RoutingType tags a provider configuration or a provider response.
type RoutingType string

const (
	RoutingTypeClassic    RoutingType = "CLASSIC"
	RoutingTypeDutchLimit RoutingType = "DUTCH_LIMIT"
)

// ProviderConfig is one routing configuration requested from the routing API.
// The set of implementations is closed: ClassicConfig and SyntheticConfig.
type ProviderConfig interface {
	RoutingType() RoutingType
	providerConfig()
}

// ClassicConfig requests an on-chain pool route.
type ClassicConfig struct {
	Protocols                      []Protocol `json:"protocols"`
	EnableUniversalRouter          bool       `json:"enableUniversalRouter"`
	Recipient                      string     `json:"recipient,omitempty"`
	EnableFeeOnTransferFeeFetching bool       `json:"enableFeeOnTransferFeeFetching"`
}

func (ClassicConfig) RoutingType() RoutingType { return RoutingTypeClassic }
func (ClassicConfig) providerConfig()          {}

// MarshalJSON adds the routingType discriminator.
func (c ClassicConfig) MarshalJSON() ([]byte, error) {
	type alias ClassicConfig
	return json.Marshal(struct {
		RoutingType RoutingType `json:"routingType"`
		alias
	}{RoutingTypeClassic, alias(c)})
}

// SyntheticConfig requests an off-chain filled (Dutch order) quote.
type SyntheticConfig struct {
	UseSyntheticQuotes bool   `json:"useSyntheticQuotes"`
	Swapper            string `json:"swapper,omitempty"`
	Recipient          string `json:"recipient,omitempty"`
}

func (SyntheticConfig) RoutingType() RoutingType { return RoutingTypeDutchLimit }
func (SyntheticConfig) providerConfig()          {}

// MarshalJSON adds the routingType discriminator.
func (c SyntheticConfig) MarshalJSON() ([]byte, error) {
	type alias SyntheticConfig
	return json.Marshal(struct {
		RoutingType RoutingType `json:"routingType"`
		alias
	}{RoutingTypeDutchLimit, alias(c)})
}

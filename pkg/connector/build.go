package connector

import (
	"fmt"

	"nftmarket/pkg/config"
)

// FromConfig assembles the connector set described by cfg.
func FromConfig(cfg config.Config, chainIDs []int64) (*Set, error) {
	list := make([]Connector, 0, len(cfg.Connectors))
	for _, cc := range cfg.Connectors {
		var h Handshaker
		switch cc.Kind {
		case config.ConnectorKindEIP1193, "":
			h = NewProvider(cc.Endpoint)
		case config.ConnectorKindRelay:
			h = NewRelay(cc.Endpoint, cfg.WalletConnectProjectID)
		default:
			return nil, fmt.Errorf("connector %s: unknown kind %q", cc.ID, cc.Kind)
		}
		list = append(list, Connector{
			ID:          cc.ID,
			DisplayName: cc.Name,
			Timeout:     cfg.HandshakeTimeout(cc),
			Handshaker:  h,
		})
	}
	return NewSet(chainIDs, list...)
}

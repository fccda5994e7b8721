package tui

import (
	"fmt"

	"nftmarket/pkg/chains"
	"nftmarket/pkg/connector"
	"nftmarket/pkg/events"
	"nftmarket/pkg/market"
	"nftmarket/pkg/wallet"
	"nftmarket/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// Options are the components the terminal UI drives.
type Options struct {
	Session    *wallet.Session
	Market     *market.Coordinator
	Chains     *chains.Registry
	Connectors *connector.Set
	Watcher    *watcher.Watcher
	Hub        *events.Hub
	Version    string
}

func Start(opts Options) error {
	if opts.Version != "" {
		Version = opts.Version
	}
	m := initialModel(opts)
	if m.sub != nil {
		defer opts.Hub.Unsubscribe(m.sub)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}

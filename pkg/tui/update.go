package tui

import (
	"errors"
	"fmt"
	"time"

	"nftmarket/pkg/errs"
	"nftmarket/pkg/events"
	"nftmarket/pkg/wallet"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 6

	case events.Event:
		cmds = append(cmds, listenForEvents(m.sub))
		switch msg.Type {
		case events.WalletStateChanged:
			if snap, ok := msg.Data.(wallet.Snapshot); ok {
				m.snapshot = snap
			}
		case events.AccountChanged:
			cmds = append(cmds, m.loadOwner(), m.loadTab())
		case events.CacheInvalidated, events.ListingsRefreshed:
			cmds = append(cmds, m.loadTab())
		}

	case nftsLoadedMsg:
		if msg.tab != m.tab {
			break
		}
		m.loading = false
		if msg.err != nil {
			m.statusMessage = describeError("Load", msg.err)
			cmds = append(cmds, clearStatusAfter(3*time.Second))
			break
		}
		m.nfts = msg.nfts
		m.lastUpdate = time.Now()
		if m.listIdx >= len(m.nfts) {
			m.listIdx = max(len(m.nfts)-1, 0)
		}
		if m.showDetail {
			m.updateDetailViewport()
		}

	case ownerMsg:
		if msg.err == nil {
			m.owner = msg.owner
		}

	case opResultMsg:
		m.busy = ""
		switch {
		case errors.Is(msg.err, errs.ErrSuperseded):
			// A newer action owns the status line.
		case msg.err != nil:
			m.statusMessage = describeError(msg.action, msg.err)
		default:
			m.statusMessage = msg.action + " succeeded"
		}
		cmds = append(cmds, clearStatusAfter(3*time.Second))

	case tea.KeyMsg:
		return m.handleKey(msg)

	case uiTickMsg:
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))

	case clearStatusMsg:
		m.statusMessage = ""
	}

	if m.loading || m.busy != "" {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	key := msg.String()

	isInputMode := m.minting || m.listing
	if !isInputMode && key == "?" {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		if key == "q" || key == "esc" || key == "?" {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case m.minting:
		return m.handleMintKey(msg)
	case m.listing:
		return m.handleListKey(msg)
	case m.pickingConnector:
		return m.handleConnectorKey(key)
	case m.pickingChain:
		return m.handleChainKey(key)
	case m.showDetail:
		switch key {
		case "q", "esc", "backspace", "enter":
			m.showDetail = false
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "P":
		m.privacyMode = !m.privacyMode

	case "tab", "right", "l":
		m.tab = (m.tab + 1) % tabCount
		m.listIdx = 0
		m.loading = true
		cmds = append(cmds, m.loadTab())
	case "shift+tab", "left", "h":
		m.tab = (m.tab + tabCount - 1) % tabCount
		m.listIdx = 0
		m.loading = true
		cmds = append(cmds, m.loadTab())

	case "up", "k":
		if m.listIdx > 0 {
			m.listIdx--
		}
	case "down", "j":
		if m.listIdx < len(m.nfts)-1 {
			m.listIdx++
		}
	case "enter":
		if len(m.nfts) > 0 {
			m.showDetail = true
			m.updateDetailViewport()
			m.viewport.YOffset = 0
		}

	case "r":
		m.statusMessage = "Refreshing listings..."
		cmds = append(cmds, m.refreshCmd(), clearStatusAfter(2*time.Second))

	case "w":
		if len(m.connectors) > 0 {
			m.pickingConnector = true
			m.connectorIdx = 0
		}
	case "n":
		if m.snapshot.Address == "" {
			m.statusMessage = "Connect a wallet first"
			cmds = append(cmds, clearStatusAfter(2*time.Second))
			break
		}
		m.pickingChain = true
		m.chainIdx = 0
		for i, c := range m.chains.List() {
			if c.ID == m.snapshot.ChainID {
				m.chainIdx = i
			}
		}
	case "d":
		m.busy = "Disconnecting"
		cmds = append(cmds, m.disconnectCmd(), m.spinner.Tick)

	case "m":
		m.minting = true
		m.mintFocus = mintName
		for i := range m.mintInputs {
			m.mintInputs[i].SetValue("")
			m.mintInputs[i].Blur()
		}
		cmds = append(cmds, m.mintInputs[mintName].Focus())

	case "s":
		if n, ok := m.selectedNFT(); ok {
			if !m.isMine(n) {
				m.statusMessage = "You can only list your own NFTs"
				cmds = append(cmds, clearStatusAfter(2*time.Second))
				break
			}
			m.listing = true
			m.priceInput.SetValue("")
			cmds = append(cmds, m.priceInput.Focus())
		}
	case "u":
		if n, ok := m.selectedNFT(); ok {
			m.busy = "Unlisting"
			cmds = append(cmds, m.saleCmd(n.ID, false, nil), m.spinner.Tick)
		}
	case "b":
		if n, ok := m.selectedNFT(); ok {
			m.busy = "Purchasing"
			cmds = append(cmds, m.purchaseCmd(n.ID), m.spinner.Tick)
		}

	case "c":
		addr := m.snapshot.Address
		if addr == "" {
			addr = m.owner
		}
		if addr != "" {
			if err := clipboard.WriteAll(addr); err != nil {
				m.statusMessage = "Failed to copy to clipboard"
			} else if m.privacyMode {
				m.statusMessage = "Full address copied (Privacy Mode active)!"
			} else {
				m.statusMessage = "Full address copied to clipboard!"
			}
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}
	case "o":
		url := m.explorerAddressURL()
		if url == "" {
			m.statusMessage = "Explorer URL not available"
		} else if err := openBrowser(url); err != nil {
			m.statusMessage = fmt.Sprintf("Failed to open browser: %v", err)
		} else {
			m.statusMessage = "Opened in browser"
		}
		cmds = append(cmds, clearStatusAfter(2*time.Second))
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleConnectorKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc", "q":
		m.pickingConnector = false
	case "up", "k":
		if m.connectorIdx > 0 {
			m.connectorIdx--
		}
	case "down", "j":
		if m.connectorIdx < len(m.connectors)-1 {
			m.connectorIdx++
		}
	case "enter":
		m.pickingConnector = false
		c := m.connectors[m.connectorIdx]
		m.busy = "Connecting to " + c.DisplayName
		return m, tea.Batch(m.connectCmd(c.ID), m.spinner.Tick)
	}
	return m, nil
}

func (m model) handleChainKey(key string) (tea.Model, tea.Cmd) {
	list := m.chains.List()
	switch key {
	case "esc", "q":
		m.pickingChain = false
	case "up", "k":
		if m.chainIdx > 0 {
			m.chainIdx--
		}
	case "down", "j":
		if m.chainIdx < len(list)-1 {
			m.chainIdx++
		}
	case "enter":
		m.pickingChain = false
		c := list[m.chainIdx]
		m.busy = "Switching to " + c.Name
		return m, tea.Batch(m.switchCmd(c.ID), m.spinner.Tick)
	}
	return m, nil
}

func (m model) handleMintKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.minting = false
		return m, nil
	case "enter", "tab":
		m.mintInputs[m.mintFocus].Blur()
		if m.mintFocus < mintFieldCount-1 {
			m.mintFocus++
			return m, m.mintInputs[m.mintFocus].Focus()
		}
		if msg.String() == "enter" {
			m.minting = false
			m.busy = "Minting"
			return m, tea.Batch(m.mintCmd(), m.spinner.Tick)
		}
		m.mintFocus = mintName
		return m, m.mintInputs[m.mintFocus].Focus()
	}
	var cmd tea.Cmd
	m.mintInputs[m.mintFocus], cmd = m.mintInputs[m.mintFocus].Update(msg)
	return m, cmd
}

func (m model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.listing = false
		m.priceInput.Blur()
		return m, nil
	case "enter":
		n, ok := m.selectedNFT()
		if !ok {
			m.listing = false
			return m, nil
		}
		price, err := parsePrice(m.priceInput.Value())
		if err != nil {
			m.statusMessage = describeError("List", err)
			return m, clearStatusAfter(3 * time.Second)
		}
		m.listing = false
		m.priceInput.Blur()
		m.busy = "Listing"
		return m, tea.Batch(m.saleCmd(n.ID, true, price), m.spinner.Tick)
	}
	var cmd tea.Cmd
	m.priceInput, cmd = m.priceInput.Update(msg)
	return m, cmd
}

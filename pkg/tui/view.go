package tui

import (
	"fmt"
	"strings"

	"nftmarket/pkg/utils"

	"github.com/charmbracelet/lipgloss"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.pickingConnector {
		return m.viewPicker("Connect Wallet", m.connectorNames(), m.connectorIdx)
	}
	if m.pickingChain {
		return m.viewPicker("Switch Network", m.chainNames(), m.chainIdx)
	}
	if m.minting {
		return m.viewMint()
	}
	if m.listing {
		return m.viewList()
	}
	if m.showDetail {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.viewport.View(),
			subtleStyle.Render("↑/↓ scroll • esc back"),
		)
	}

	sections := []string{
		m.viewHeader(),
		m.viewWallet(),
		m.viewTabs(),
		m.viewNFTs(),
		m.viewFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) viewHeader() string {
	title := titleStyle.Render("NFT Marketplace")
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", subtleStyle.Render("v"+Version))
}

func (m model) viewWallet() string {
	snap := m.snapshot
	var lines []string
	switch snap.Status {
	case "connected":
		lines = append(lines,
			infoStyle.Render("● Connected")+" "+m.shortAddress(snap.Address),
			fmt.Sprintf("Network: %s (%d)", snap.ChainName, snap.ChainID),
		)
		if snap.DisplayName != "" && !m.privacyMode {
			lines = append(lines, "Name:    "+snap.DisplayName)
		}
	case "switching_chain":
		lines = append(lines,
			infoStyle.Render("● Connected")+" "+m.shortAddress(snap.Address),
			fmt.Sprintf("Switching %s → %s", snap.ChainName, m.chains.ResolveName(snap.TargetChainID)),
		)
	case "connecting":
		lines = append(lines, fmt.Sprintf("%s Connecting via %s...", m.spinner.View(), snap.ConnectorID))
	default:
		lines = append(lines, subtleStyle.Render("○ Wallet not connected")+"  (w) connect")
	}
	if snap.Error != "" {
		lines = append(lines, errStyle.Render(snap.Error))
	}
	if m.owner != "" {
		lines = append(lines, subtleStyle.Render("Acting as "+m.shortAddress(m.owner)))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func (m model) viewTabs() string {
	var tabs []string
	for i := 0; i < tabCount; i++ {
		if i == m.tab {
			tabs = append(tabs, selectedStyle.Render("["+tabTitle(i)+"]"))
		} else {
			tabs = append(tabs, subtleStyle.Render(" "+tabTitle(i)+" "))
		}
	}
	return strings.Join(tabs, " ")
}

func (m model) viewNFTs() string {
	if m.loading && len(m.nfts) == 0 {
		return fmt.Sprintf("%s Loading %s...", m.spinner.View(), strings.ToLower(tabTitle(m.tab)))
	}
	if len(m.nfts) == 0 {
		return subtleStyle.Render("No NFTs here yet. Press (m) to mint one.")
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("%-6s %-24s %-16s %s", "ID", "Name", "Owner", "Price"))
	rows := []string{header}
	for i, n := range m.nfts {
		price := subtleStyle.Render("-")
		if n.ForSale {
			price = saleStyle.Render(utils.FormatPrice(n.Price))
		}
		owner := m.shortAddress(n.Owner)
		if m.isMine(n) {
			owner = "you"
		}
		row := fmt.Sprintf("%-6s %-24s %-16s %s", n.ID, utils.TruncateString(n.Name, 24), owner, price)
		if i == m.listIdx {
			row = selectedStyle.Render("> ") + row
		} else {
			row = "  " + row
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func (m model) viewFooter() string {
	var status string
	switch {
	case m.busy != "":
		status = m.spinner.View() + " " + m.busy + "..."
	case m.statusMessage != "":
		if strings.Contains(m.statusMessage, "failed") {
			status = errStyle.Render(m.statusMessage)
		} else {
			status = infoStyle.Render(m.statusMessage)
		}
	case !m.lastUpdate.IsZero():
		status = subtleStyle.Render("Updated " + m.lastUpdate.Format("15:04:05"))
	}
	help := subtleStyle.Render("tab views • w connect • n network • d disconnect • m mint • s list • u unlist • b buy • ? help • q quit")
	return lipgloss.JoinVertical(lipgloss.Left, "", status, help)
}

func (m model) viewPicker(title string, items []string, idx int) string {
	var rows []string
	for i, it := range items {
		if i == idx {
			rows = append(rows, selectedStyle.Render("> "+it))
		} else {
			rows = append(rows, "  "+it)
		}
	}
	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(title),
			"\n",
			strings.Join(rows, "\n"),
			"\n",
			subtleStyle.Render("Enter to select • Esc to cancel"),
		)),
	)
}

func (m model) viewMint() string {
	labels := []string{"Name", "Description", "Metadata", "Image file"}
	var inputs []string
	for i, label := range labels {
		inputs = append(inputs, fmt.Sprintf("%-12s %s", label, m.mintInputs[i].View()))
	}
	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Mint NFT"),
			"\n",
			strings.Join(inputs, "\n"),
			"\n",
			subtleStyle.Render("Enter to next/save • Esc to cancel"),
		)),
	)
}

func (m model) viewList() string {
	n, _ := m.selectedNFT()
	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("List for Sale"),
			"\n",
			fmt.Sprintf("NFT: %s (#%s)", n.Name, n.ID),
			m.priceInput.View(),
			"\n",
			subtleStyle.Render("Enter to list • Esc to cancel"),
		)),
	)
}

func (m model) viewHelp() string {
	keys := [][2]string{
		{"tab / shift+tab", "Switch between Marketplace, My NFTs and All NFTs"},
		{"↑/↓ or j/k", "Select an NFT"},
		{"enter", "Show NFT details"},
		{"w", "Connect a wallet"},
		{"n", "Switch network"},
		{"d", "Disconnect wallet"},
		{"m", "Mint a new NFT"},
		{"s / u", "List / unlist the selected NFT"},
		{"b", "Buy the selected NFT"},
		{"r", "Refresh listings"},
		{"c", "Copy address to clipboard"},
		{"o", "Open address in block explorer"},
		{"P", "Toggle privacy mode"},
		{"q", "Quit"},
	}
	var rows []string
	for _, k := range keys {
		rows = append(rows, fmt.Sprintf("%-18s %s", k[0], k[1]))
	}
	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Keyboard Shortcuts"),
			"\n",
			strings.Join(rows, "\n"),
			"\n",
			subtleStyle.Render("Press ? or esc to close"),
		)),
	)
}

func (m model) connectorNames() []string {
	out := make([]string, len(m.connectors))
	for i, c := range m.connectors {
		out[i] = c.DisplayName
	}
	return out
}

func (m model) chainNames() []string {
	list := m.chains.List()
	out := make([]string, len(list))
	for i, c := range list {
		name := c.Name
		if c.ID == m.snapshot.ChainID {
			name += " (current)"
		}
		out[i] = name
	}
	return out
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"nftmarket/pkg/cache"
	"nftmarket/pkg/errs"
	"nftmarket/pkg/events"
	"nftmarket/pkg/models"
	"nftmarket/pkg/utils"

	tea "github.com/charmbracelet/bubbletea"
)

const opTimeout = 2 * time.Minute

func listenForEvents(sub events.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearStatusMsg{} })
}

func tabTitle(tab int) string {
	switch tab {
	case tabMine:
		return "My NFTs"
	case tabAll:
		return "All NFTs"
	default:
		return "Marketplace"
	}
}

func (m model) loadTab() tea.Cmd {
	tab, co := m.tab, m.market
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var nfts []models.NFT
		var err error
		switch tab {
		case tabMine:
			nfts, err = co.Mine(ctx)
		case tabAll:
			nfts, err = co.All(ctx)
		default:
			nfts, err = co.ForSale(ctx)
		}
		return nftsLoadedMsg{tab: tab, nfts: nfts, err: err}
	}
}

func (m model) loadOwner() tea.Cmd {
	co := m.market
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		owner, err := co.Owner(ctx)
		return ownerMsg{owner: owner, err: err}
	}
}

// runOp executes a wallet or market action off the UI loop.
func runOp(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opResultMsg{action: action, err: fn(ctx)}
	}
}

func (m model) connectCmd(id string) tea.Cmd {
	s := m.session
	return runOp("Connect", func(ctx context.Context) error {
		_, err := s.Connect(ctx, id)
		return err
	})
}

func (m model) switchCmd(chainID int64) tea.Cmd {
	s := m.session
	return runOp("Switch network", func(ctx context.Context) error {
		_, err := s.SwitchNetwork(ctx, chainID)
		return err
	})
}

func (m model) disconnectCmd() tea.Cmd {
	s := m.session
	return runOp("Disconnect", func(ctx context.Context) error {
		s.Disconnect(ctx)
		return nil
	})
}

func (m model) mintCmd() tea.Cmd {
	co := m.market
	input := models.NFTInput{
		Name:        strings.TrimSpace(m.mintInputs[mintName].Value()),
		Description: strings.TrimSpace(m.mintInputs[mintDescription].Value()),
		Metadata:    strings.TrimSpace(m.mintInputs[mintMetadata].Value()),
	}
	path := strings.TrimSpace(m.mintInputs[mintImage].Value())
	return runOp("Mint", func(ctx context.Context) error {
		if path != "" {
			img, err := os.ReadFile(path)
			if err != nil {
				return errs.Precondition("image", fmt.Sprintf("cannot read image: %v", err))
			}
			input.Image = img
		}
		_, err := co.Mint(ctx, input)
		return err
	})
}

func (m model) saleCmd(id models.EntityID, forSale bool, price *big.Int) tea.Cmd {
	co := m.market
	action := "Unlist"
	if forSale {
		action = "List"
	}
	return runOp(action, func(ctx context.Context) error {
		return co.SetSaleStatus(ctx, id, forSale, price)
	})
}

func (m model) purchaseCmd(id models.EntityID) tea.Cmd {
	co := m.market
	return runOp("Purchase", func(ctx context.Context) error {
		return co.Purchase(ctx, id)
	})
}

func (m model) refreshCmd() tea.Cmd {
	w, c := m.watcher, m.market.Cache()
	return func() tea.Msg {
		if w != nil {
			w.Refresh()
		} else {
			c.Invalidate(cache.Exact(cache.AllNFTs(), cache.ForSale()))
		}
		return nil
	}
}

// parsePrice reads a positive integer price.
func parsePrice(s string) (*big.Int, error) {
	p, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, errs.Precondition("price", "price must be an integer")
	}
	if p.Sign() <= 0 {
		return nil, errs.Precondition("price", "price must be greater than zero")
	}
	return p, nil
}

// describeError renders err for the status line, naming the field for
// validation failures.
func describeError(action string, err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Field() != "" {
		return fmt.Sprintf("%s failed: %s (%s)", action, e.Message, e.Field())
	}
	return fmt.Sprintf("%s failed: %v", action, err)
}

func (m model) selectedNFT() (models.NFT, bool) {
	if m.listIdx < 0 || m.listIdx >= len(m.nfts) {
		return models.NFT{}, false
	}
	return m.nfts[m.listIdx], true
}

func (m model) isMine(n models.NFT) bool {
	return m.owner != "" && n.Owner == m.owner
}

func (m model) explorerAddressURL() string {
	if m.snapshot.Address == "" {
		return ""
	}
	c, ok := m.chains.Lookup(m.snapshot.ChainID)
	if !ok || c.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(c.ExplorerURL, "/") + "/address/" + m.snapshot.Address
}

func (m *model) updateDetailViewport() {
	n, ok := m.selectedNFT()
	if !ok {
		m.viewport.SetContent("Nothing selected.")
		return
	}
	status := "not for sale"
	if n.ForSale {
		status = "for sale at " + utils.FormatPrice(n.Price)
	}
	lines := []string{
		titleStyle.Render(n.Name),
		"",
		n.Description,
		"",
		fmt.Sprintf("%-12s %s", "ID", n.ID),
		fmt.Sprintf("%-12s %s", "Owner", m.maskAddress(n.Owner)),
		fmt.Sprintf("%-12s %s", "Status", status),
		fmt.Sprintf("%-12s %d bytes", "Image", len(n.Image)),
	}
	if n.CreatedAt > 0 {
		lines = append(lines, fmt.Sprintf("%-12s %s", "Created", time.Unix(0, n.CreatedAt).Format(time.RFC3339)))
	}
	if n.Metadata != "" {
		lines = append(lines, "", subtleStyle.Render("Metadata"), n.Metadata)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

package tui

import (
	"time"

	"nftmarket/pkg/chains"
	"nftmarket/pkg/connector"
	"nftmarket/pkg/events"
	"nftmarket/pkg/market"
	"nftmarket/pkg/models"
	"nftmarket/pkg/wallet"
	"nftmarket/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

const (
	tabMarket = iota
	tabMine
	tabAll
	tabCount
)

// Mint form fields.
const (
	mintName = iota
	mintDescription
	mintMetadata
	mintImage
	mintFieldCount
)

// --- Messages ---

type clearStatusMsg struct{}
type uiTickMsg time.Time

type nftsLoadedMsg struct {
	tab  int
	nfts []models.NFT
	err  error
}

type ownerMsg struct {
	owner string
	err   error
}

type opResultMsg struct {
	action string
	err    error
}

// --- Model ---

type model struct {
	session    *wallet.Session
	market     *market.Coordinator
	chains     *chains.Registry
	connectors []connector.Connector
	watcher    *watcher.Watcher
	sub        events.Subscriber

	snapshot      wallet.Snapshot
	owner         string
	tab           int
	nfts          []models.NFT
	listIdx       int
	width         int
	height        int
	loading       bool
	busy          string
	lastUpdate    time.Time
	spinner       spinner.Model
	statusMessage string
	showHelp      bool
	privacyMode   bool

	pickingConnector bool
	connectorIdx     int
	pickingChain     bool
	chainIdx         int

	minting    bool
	mintInputs []textinput.Model
	mintFocus  int

	listing    bool
	priceInput textinput.Model

	showDetail bool
	viewport   viewport.Model
}

func initialModel(opts Options) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	mis := make([]textinput.Model, mintFieldCount)
	for i := range mis {
		mis[i] = textinput.New()
		mis[i].Width = 50
	}
	mis[mintName].Placeholder = "Name"
	mis[mintDescription].Placeholder = "Description"
	mis[mintMetadata].Placeholder = "Metadata (optional)"
	mis[mintImage].Placeholder = "/path/to/image.png"

	pi := textinput.New()
	pi.Placeholder = "Price (integer units)"
	pi.Width = 30

	var conns []connector.Connector
	if opts.Connectors != nil {
		conns = opts.Connectors.List()
	}
	var sub events.Subscriber
	if opts.Hub != nil {
		sub = opts.Hub.Subscribe()
	}

	return model{
		session:    opts.Session,
		market:     opts.Market,
		chains:     opts.Chains,
		connectors: conns,
		watcher:    opts.Watcher,
		sub:        sub,
		snapshot:   opts.Session.Snapshot(),
		loading:    true,
		spinner:    s,
		mintInputs: mis,
		priceInput: pi,
		viewport:   viewport.New(0, 0),
	}
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.sub != nil {
		cmds = append(cmds, listenForEvents(m.sub))
	}
	cmds = append(cmds, m.spinner.Tick, m.loadOwner(), m.loadTab())
	cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))
	return tea.Batch(cmds...)
}

package wallet

// State is one of Disconnected, Connecting, Connected, SwitchingChain or
// Errored.
type State interface {
	Status() string
	walletState()
}

type Disconnected struct{}

type Connecting struct {
	ConnectorID string
}

type Connected struct {
	Address string
	ChainID int64
}

type SwitchingChain struct {
	Address string
	From    int64
	To      int64
}

// Errored is entered when the active wallet reports an error outside of any
// request. It behaves as disconnected.
type Errored struct {
	Cause error
}

func (Disconnected) Status() string   { return "disconnected" }
func (Connecting) Status() string     { return "connecting" }
func (Connected) Status() string      { return "connected" }
func (SwitchingChain) Status() string { return "switching_chain" }
func (Errored) Status() string        { return "error" }

func (Disconnected) walletState()   {}
func (Connecting) walletState()     {}
func (Connected) walletState()      {}
func (SwitchingChain) walletState() {}
func (Errored) walletState()        {}

// Address returns the account held by s, if any.
func Address(s State) string {
	switch v := s.(type) {
	case Connected:
		return v.Address
	case SwitchingChain:
		return v.Address
	}
	return ""
}

// Snapshot is a serialisable view of the session for subscribers and the API.
type Snapshot struct {
	Status        string `json:"status"`
	ConnectorID   string `json:"connector,omitempty"`
	Address       string `json:"address,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	ChainID       int64  `json:"chain_id,omitempty"`
	ChainName     string `json:"chain_name,omitempty"`
	TargetChainID int64  `json:"target_chain_id,omitempty"`
	Error         string `json:"error,omitempty"`

	State State `json:"-"`
	Err   error `json:"-"`
}

// AccountChange is published when the connected address changes, including
// to and from the empty address.
type AccountChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

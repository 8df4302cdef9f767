package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"

	"hlsubmit/pkg/confkit"
	"hlsubmit/pkg/exchange"
	hl "hlsubmit/pkg/exchange/hyperliquid"
)

// report is what signercheck learned about one provider's signing setup.
type report struct {
	Provider  string
	Network   hl.Network
	BaseURL   string
	APIWallet string
	Vault     string
	Recovered string
	Role      string
}

// selfCheck signs a fixed connection id and recovers the signer from it, so a
// wrong key or network shows up before any order is sent.
func selfCheck(name string, pc *exchange.ProviderConfig) (*report, error) {
	signer, err := hl.NewPrivateKeySigner(pc.PrivateKey)
	if err != nil {
		return nil, err
	}
	network := hl.Mainnet
	if pc.Testnet {
		network = hl.Testnet
	}
	r := &report{
		Provider:  name,
		Network:   network,
		BaseURL:   hl.TransportConfigFrom(pc, network).BaseURL,
		APIWallet: strings.ToLower(signer.Address()),
	}

	var vault *common.Address
	if pc.VaultAddress != "" {
		if !common.IsHexAddress(pc.VaultAddress) {
			return nil, fmt.Errorf("vault_address %q is not an address", pc.VaultAddress)
		}
		addr := common.HexToAddress(pc.VaultAddress)
		vault = &addr
		r.Vault = strings.ToLower(addr.Hex())
	}

	enc, err := hl.EncodeAction(hl.Action{Type: hl.ActionTypeOrder, Orders: []hl.OrderWire{}, Grouping: hl.GroupingNA})
	if err != nil {
		return nil, err
	}
	id := hl.ConnectionID(enc.Canonical, uint64(time.Now().UnixMilli()), vault, nil)
	sig, err := signer.SignL1(id, network)
	if err != nil {
		return nil, err
	}
	recovered, err := hl.RecoverL1Signer(id, network, sig)
	if err != nil {
		return nil, err
	}
	r.Recovered = strings.ToLower(recovered.Hex())
	if r.Recovered != r.APIWallet {
		return r, fmt.Errorf("recovered signer %s does not match key address %s", r.Recovered, r.APIWallet)
	}
	return r, nil
}

// queryRole asks the venue how it knows the API wallet (user, agent, vault or missing).
func queryRole(ctx context.Context, tr *hl.Transport, addr string) (string, error) {
	body, err := json.Marshal(hl.InfoRequest{Type: "userRole", User: addr})
	if err != nil {
		return "", err
	}
	status, resp, err := tr.Post(ctx, hl.InfoPath, body)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", fmt.Errorf("userRole: status %d: %s", status, strings.TrimSpace(string(resp)))
	}
	var out struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return strings.TrimSpace(string(resp)), nil
	}
	return out.Role, nil
}

func (r *report) print(w io.Writer) {
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Provider:   %s (%s, %s)\n", r.Provider, r.Network, r.BaseURL)
	fmt.Fprintf(w, "API wallet: %s\n", r.APIWallet)
	if r.Vault != "" {
		fmt.Fprintf(w, "Vault:      %s\n", r.Vault)
	} else {
		fmt.Fprintln(w, "Vault:      (none, orders act for the API wallet)")
	}
	fmt.Fprintf(w, "Recovered:  %s\n", r.Recovered)
	if r.Role != "" {
		fmt.Fprintf(w, "Venue role: %s\n", r.Role)
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════")
	if r.Role == "missing" {
		fmt.Fprintln(w, "The venue does not know this wallet. Register it as an API wallet of the")
		fmt.Fprintln(w, "trading account before submitting orders.")
	}
}

func main() {
	var (
		path     = flag.String("f", "etc/exchange.yaml", "path to exchange provider configuration")
		provider = flag.String("provider", "", "provider to check (defaults to the config default)")
		remote   = flag.Bool("remote", false, "also ask the venue for the wallet's role")
	)
	flag.Parse()
	confkit.LoadDotenvOnce()

	cfg, err := exchange.LoadConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load exchange config: %v\n", err)
		os.Exit(1)
	}
	name := *provider
	if name == "" {
		name = cfg.Default
	}
	pc, ok := cfg.Providers[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "provider %q not defined\n", name)
		os.Exit(1)
	}

	r, err := selfCheck(name, pc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing self-check failed: %v\n", err)
		os.Exit(1)
	}
	if *remote {
		tr, err := hl.NewTransport(hl.TransportConfigFrom(pc, r.Network))
		if err != nil {
			fmt.Fprintf(os.Stderr, "transport: %v\n", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		r.Role, err = queryRole(ctx, tr, r.APIWallet)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "query role: %v\n", err)
		}
	}
	r.print(os.Stdout)
}

// Command diotd runs a single diodt mesh node: its configured device
// workers, its peer-to-peer swarm, rule engine, mesh store, and web
// bridge.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"diodt/core"
	_ "diodt/devices"
	"diodt/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diotd",
		Short: "diodt mesh node daemon",
		RunE:  run,
	}

	cmd.PersistentFlags().String("config", config.DefaultPath, "path to the node's config.json")
	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	viper.SetEnvPrefix("diodt")
	viper.AutomaticEnv()

	cfg, err := config.LoadOrBootstrap(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	levelName := viper.GetString("log-level")
	if !viper.IsSet("log-level") && cfg.Logging.Level != "" {
		levelName = cfg.Logging.Level
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)

	priv, err := cfg.Secrets.DecodeKeypair()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	p2pPriv, err := crypto.UnmarshalEd25519PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("config: unmarshalling libp2p identity: %w", err)
	}

	psk, err := cfg.Secrets.DecodePSK()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	node, err := core.NewNode(ctx, core.NodeConfig{
		Name:       cfg.Peer.Name,
		Devices:    cfg.Peer.Devices,
		Rules:      cfg.Rules,
		ListenAddr: "/ip4/0.0.0.0/tcp/0",
		PrivateKey: p2pPriv,
		PSK:        psk,
		WebPort:    cfg.Web.Port,
	})
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}

	logrus.Infof("my peer id is %s", node.LocalPeerID())

	webErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Web.Port)
		logrus.Infof("web bridge listening on %s", addr)
		webErr <- http.ListenAndServe(addr, node.WebBridge().Router())
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- node.Run(ctx) }()

	select {
	case err := <-runErr:
		return err
	case err := <-webErr:
		cancel()
		<-runErr
		if err != nil {
			return fmt.Errorf("web bridge: %w", err)
		}
		return nil
	}
}

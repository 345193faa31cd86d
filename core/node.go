package core

import (
	"context"
	"encoding/json"

	"github.com/benbjohnson/clock"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/pnet"
	"github.com/sirupsen/logrus"
)

// NodeConfig is everything needed to wire up a running Node.
type NodeConfig struct {
	Name       string
	Devices    map[string]DeviceConfig
	Rules      []Rule
	ListenAddr string
	PrivateKey p2pcrypto.PrivKey
	PSK        pnet.PSK
	Bootstrap  []string
	WebPort    uint16
	Clock      clock.Clock
}

// Node is the event loop (C7) that binds together the supervisor, the
// swarm, the mesh store, the rule engine, and the web bridge.
type Node struct {
	id         PeerID
	name       string
	supervisor *Supervisor
	swarm      *Swarm
	store      *Store
	rules      *RuleEngine
	web        *WebBridge
	clock      clock.Clock

	loggedAddrs map[string]bool
}

// NewNode constructs every component and starts the configured devices
// and the swarm. It does not start the event loop; call Run for that.
func NewNode(ctx context.Context, cfg NodeConfig) (*Node, error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	supervisor := NewSupervisor(ctx, clk)
	if err := supervisor.StartDevices(cfg.Devices); err != nil {
		return nil, err
	}

	swarmCfg := SwarmConfig{
		ListenAddr:     cfg.ListenAddr,
		PrivateKey:     cfg.PrivateKey,
		PSK:            cfg.PSK,
		BootstrapPeers: cfg.Bootstrap,
	}
	swarm, err := NewSwarm(ctx, swarmCfg)
	if err != nil {
		return nil, err
	}

	catalog := make(map[string]DeviceCatalogEntry, len(cfg.Devices))
	for name, dc := range cfg.Devices {
		catalog[name] = DeviceCatalogEntry{DeviceType: dc.DeviceType}
	}
	localData := PeerData{Name: cfg.Name, Devices: catalog}

	store := NewStore(swarm.LocalPeerID(), localData)
	rules := NewRuleEngine(cfg.Rules)
	web := NewWebBridge(store)

	return &Node{
		id:          swarm.LocalPeerID(),
		name:        cfg.Name,
		supervisor:  supervisor,
		swarm:       swarm,
		store:       store,
		rules:       rules,
		web:         web,
		clock:       clk,
		loggedAddrs: make(map[string]bool),
	}, nil
}

func (n *Node) LocalPeerID() PeerID { return n.id }

// WebBridge exposes the HTTP/WebSocket router for the caller to serve.
func (n *Node) WebBridge() *WebBridge { return n.web }

// Run drives the node event loop until ctx is cancelled, then performs a
// graceful shutdown: draining in-flight actuation tasks and resetting
// every device before returning.
func (n *Node) Run(ctx context.Context) error {
	heartbeat := n.clock.Ticker(GossipHeartbeat)
	defer heartbeat.Stop()

	n.logNewListenAddresses()

	for {
		select {
		case <-ctx.Done():
			n.supervisor.Shutdown()
			_ = n.swarm.Close()
			return nil

		case <-heartbeat.C:
			n.publishIdentity()
			n.logNewListenAddresses()

		case ev := <-n.swarm.Events():
			n.handleSwarmEvent(ctx, ev)
			n.logNewListenAddresses()

		case sensorEv := <-n.supervisor.events:
			n.handleLocalSensorEvent(ctx, sensorEv)
		}
	}
}

func (n *Node) logNewListenAddresses() {
	for _, addr := range n.swarm.ListenAddresses() {
		if !n.loggedAddrs[addr] {
			n.loggedAddrs[addr] = true
			logrus.Infof("now listening on %s", addr)
		}
	}
}

func (n *Node) publishIdentity() {
	data := PeerData{Name: n.name, Devices: n.supervisor.Devices()}
	if err := n.swarm.Broadcast(NewIdentityBroadcast(data)); err != nil {
		logrus.Warnf("node: failed to broadcast identity: %v", err)
	}
}

func (n *Node) handleSwarmEvent(ctx context.Context, ev SwarmEvent) {
	switch ev.Kind {
	case SwarmEventBroadcast:
		n.handleBroadcast(ctx, ev.Origin, ev.Envelope)
	case SwarmEventActuatorRequest:
		n.supervisor.ActuateRemote(ctx, ev.RequestData, ev.Respond)
	case SwarmEventActuatorResponse:
		logrus.Debugf("actuator response %s: %s", ev.CorrelationID, ev.Result.Kind())
	}
}

func (n *Node) handleBroadcast(ctx context.Context, origin PeerID, envelope BroadcastEnvelope) {
	switch envelope.Kind {
	case BroadcastIdentity:
		if envelope.Identity == nil {
			return
		}
		n.store.InsertPeerData(origin, *envelope.Identity)
		n.web.PushIdentity(origin, *envelope.Identity)

	case BroadcastSensorData:
		if envelope.SensorData == nil {
			return
		}
		event := *envelope.SensorData
		if ok := n.store.InsertSensorData(origin, event); !ok {
			logrus.Warnf("dropping orphan sensor event from peer %s: device %q unknown", origin, event.DeviceName)
			return
		}
		n.web.PushSensorData(&origin, event)
		actions := n.rules.EvaluateRemote(origin, event)
		n.dispatchActions(ctx, actions)
	}
}

func (n *Node) handleLocalSensorEvent(ctx context.Context, event FullSensorData) {
	if err := n.swarm.Broadcast(NewSensorBroadcast(event)); err != nil {
		logrus.Warnf("node: failed to broadcast sensor data: %v", err)
	}
	n.store.InsertSensorData(n.id, event)
	n.web.PushSensorData(nil, event)

	actions := n.rules.EvaluateLocal(event)
	n.dispatchActions(ctx, actions)
}

func (n *Node) dispatchActions(ctx context.Context, actions []Action) {
	for _, action := range actions {
		if action.IsLocal(n.id) {
			reply := make(chan ActuationResult, 1)
			if !n.supervisor.ActuateLocal(ctx, action.Actuator, reply) {
				logrus.Warnf("rule fired an action for unknown local device %q", action.Actuator.DeviceName)
				continue
			}
			go func(a Action) {
				select {
				case result := <-reply:
					logrus.Debugf("local action result for %s/%s: %s", a.Actuator.DeviceName, a.Actuator.ActuatorName, result.Kind())
				case <-ctx.Done():
				}
			}(action)
			continue
		}

		corrID, err := n.swarm.SendActuatorRequest(ctx, *action.Node, action.Actuator)
		if err != nil {
			logrus.Warnf("node: failed to dispatch remote action to %s: %v", *action.Node, err)
			continue
		}
		logrus.Debugf("dispatched remote action %s to %s", corrID, *action.Node)
	}
}

// MarshalDeviceConfigs encodes a peer.devices section (device configs
// keyed by device name) as JSON.
func MarshalDeviceConfigs(devices map[string]DeviceConfig) (json.RawMessage, error) {
	return json.Marshal(devices)
}

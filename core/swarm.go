package core

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	p2pnetwork "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/pnet"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/libp2p/go-msgio"
	"github.com/sirupsen/logrus"
)

const (
	// GossipTopic is the single broadcast topic every node subscribes to.
	GossipTopic = "default"
	// ActuatorProtocolID is the request/response protocol used to dispatch
	// a remote actuation and receive its result.
	ActuatorProtocolID protocol.ID = "/diodt/actuators/1.0"
	// MDNSServiceName matches the original's deliberately tongue-in-cheek
	// service name.
	MDNSServiceName = "_p2p-nodes-nope._udp.local"
	// GossipHeartbeat is both the gossipsub heartbeat interval and the
	// node loop's own identity-broadcast interval.
	GossipHeartbeat = 5 * time.Second
	// HandshakeTimeout bounds each connection attempt (dial plus
	// handshake) to a peer found through mDNS. Bootstrap dials are not
	// bounded by it.
	HandshakeTimeout = 20 * time.Second
)

// BroadcastKind tags a gossip envelope.
type BroadcastKind string

const (
	BroadcastIdentity   BroadcastKind = "identity"
	BroadcastSensorData BroadcastKind = "sensor_data"
)

// BroadcastEnvelope is the tagged union published on the gossip topic:
// either a peer's identity or one sensor reading.
type BroadcastEnvelope struct {
	Kind       BroadcastKind    `json:"kind"`
	Identity   *PeerData        `json:"identity,omitempty"`
	SensorData *FullSensorData  `json:"sensor_data,omitempty"`
}

func NewIdentityBroadcast(data PeerData) BroadcastEnvelope {
	return BroadcastEnvelope{Kind: BroadcastIdentity, Identity: &data}
}

func NewSensorBroadcast(data FullSensorData) BroadcastEnvelope {
	return BroadcastEnvelope{Kind: BroadcastSensorData, SensorData: &data}
}

// SwarmEventKind tags a SwarmEvent variant.
type SwarmEventKind string

const (
	SwarmEventBroadcast        SwarmEventKind = "broadcast"
	SwarmEventActuatorRequest  SwarmEventKind = "actuator_request"
	SwarmEventActuatorResponse SwarmEventKind = "actuator_response"
)

// SwarmEvent is anything the node loop needs to react to that originated
// on the network.
type SwarmEvent struct {
	Kind SwarmEventKind

	// SwarmEventBroadcast
	Origin   PeerID
	Envelope BroadcastEnvelope

	// SwarmEventActuatorRequest
	RequestData FullActuatorData
	Respond     func(ActuationResult) error

	// SwarmEventActuatorResponse
	CorrelationID string
	Result        ActuationResult
}

// SwarmConfig configures a new Swarm.
type SwarmConfig struct {
	ListenAddr     string
	PrivateKey     p2pcrypto.PrivKey
	PSK            pnet.PSK
	BootstrapPeers []string
}

// Swarm is the peer-to-peer behaviour (C4): gossip broadcast, mDNS
// discovery, and the actuator request/response protocol, all gated
// behind a pre-shared-key private network.
type Swarm struct {
	host  host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	mdns  mdns.Service
	local PeerID

	ctx    context.Context
	cancel context.CancelFunc

	events chan SwarmEvent
}

// NewSwarm constructs the libp2p host, joins the gossip topic, starts
// mDNS discovery, and installs the actuator protocol handler.
func NewSwarm(ctx context.Context, cfg SwarmConfig) (*Swarm, error) {
	ctx, cancel := context.WithCancel(ctx)

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(cfg.ListenAddr),
		libp2p.Identity(cfg.PrivateKey),
		libp2p.PrivateNetwork(cfg.PSK),
		libp2p.Transport(tcp.NewTCPTransport),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("swarm: creating libp2p host: %w", err)
	}

	local, err := peerIDFromPubKey(cfg.PrivateKey.GetPublic())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("swarm: deriving local peer id: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSigning(true),
		pubsub.WithStrictSignatureVerification(true),
		pubsub.WithHeartbeatInterval(GossipHeartbeat),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("swarm: creating gossipsub: %w", err)
	}

	topic, err := ps.Join(GossipTopic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("swarm: joining topic %q: %w", GossipTopic, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("swarm: subscribing to topic %q: %w", GossipTopic, err)
	}

	s := &Swarm{
		host:   h,
		ps:     ps,
		topic:  topic,
		sub:    sub,
		local:  local,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan SwarmEvent, 256),
	}

	h.SetStreamHandler(ActuatorProtocolID, s.handleActuatorStream)

	mdnsSvc := mdns.NewMdnsService(h, MDNSServiceName, &mdnsNotifee{swarm: s})
	if err := mdnsSvc.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("swarm: starting mDNS: %w", err)
	}
	s.mdns = mdnsSvc

	for _, addr := range cfg.BootstrapPeers {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			logrus.Warnf("swarm: invalid bootstrap address %q: %v", addr, err)
			continue
		}
		if err := h.Connect(ctx, *info); err != nil {
			logrus.Warnf("swarm: failed to dial bootstrap peer %q: %v", addr, err)
		}
	}

	go s.pullGossip()

	return s, nil
}

func (s *Swarm) LocalPeerID() PeerID { return s.local }

// ListenAddresses returns the host's current listen multiaddrs, as
// strings, for the node loop's first-time listening-address log.
func (s *Swarm) ListenAddresses() []string {
	addrs := s.host.Addrs()
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

type mdnsNotifee struct {
	swarm *Swarm
}

// HandlePeerFound is called by the mDNS service whenever a peer
// advertising the same service name is discovered on the LAN. Connecting
// is enough for gossipsub to consider the peer a mesh candidate once it
// announces its own subscriptions; the request/response protocol
// resolves addresses lazily from the same peerstore entry this populates.
func (n *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.swarm.host.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(n.swarm.ctx, HandshakeTimeout)
	defer cancel()
	if err := n.swarm.host.Connect(ctx, info); err != nil {
		logrus.Warnf("swarm: failed to connect to discovered peer %s: %v", info.ID, err)
		return
	}
	logrus.Debugf("swarm: connected to discovered peer %s", info.ID)
}

// Broadcast publishes an envelope on the gossip topic. A publish failure
// due to having no subscribed peers yet is tolerated silently (§4.7);
// any other failure is logged and returned to the caller. A failed
// publish is not retried.
func (s *Swarm) Broadcast(envelope BroadcastEnvelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("swarm: encoding broadcast: %w", err)
	}

	if err := s.topic.Publish(s.ctx, data); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "insufficient peers") {
			return nil
		}
		logrus.Warnf("swarm: publish failed: %v", err)
		return err
	}
	return nil
}

func (s *Swarm) pullGossip() {
	for {
		msg, err := s.sub.Next(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			logrus.Warnf("swarm: gossip subscription error: %v", err)
			return
		}

		from := msg.GetFrom()
		if len(from) == 0 {
			logrus.Warn("swarm: dropping broadcast message with no source")
			continue
		}

		origin, err := peerIDFromLibp2p(from)
		if err != nil {
			logrus.Warnf("swarm: dropping broadcast from unresolvable peer id %s: %v", from, err)
			continue
		}

		var envelope BroadcastEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			logrus.Warnf("swarm: error deserializing broadcast: %v", err)
			continue
		}

		ev := SwarmEvent{Kind: SwarmEventBroadcast, Origin: origin, Envelope: envelope}
		select {
		case s.events <- ev:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Swarm) handleActuatorStream(stream p2pnetwork.Stream) {
	reader := msgio.NewVarintReader(stream)
	payload, err := reader.ReadMsg()
	if err != nil {
		logrus.Warnf("swarm: error reading actuator request: %v", err)
		stream.Close()
		return
	}

	var wire RemoteActuatorRequest
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&wire); err != nil {
		logrus.Warnf("swarm: error decoding actuator request: %v", err)
		stream.Close()
		return
	}
	req := wire.ToRequest()

	origin, err := peerIDFromLibp2p(stream.Conn().RemotePeer())
	if err != nil {
		logrus.Warnf("swarm: dropping actuator request from unresolvable peer: %v", err)
		stream.Close()
		return
	}

	var once sync.Once
	respond := func(result ActuationResult) error {
		var sendErr error
		once.Do(func() {
			defer stream.Close()
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(result.ToRemote()); err != nil {
				sendErr = fmt.Errorf("encoding response: %w", err)
				return
			}
			writer := msgio.NewVarintWriter(stream)
			sendErr = writer.WriteMsg(buf.Bytes())
		})
		return sendErr
	}

	ev := SwarmEvent{Kind: SwarmEventActuatorRequest, Origin: origin, RequestData: req, Respond: respond}
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
		stream.Close()
	}
}

// SendActuatorRequest dispatches a remote actuation over the
// request/response protocol and returns a correlation id immediately;
// the eventual ActuatorResponse arrives as a SwarmEvent carrying the same
// id (§4.4, §9).
func (s *Swarm) SendActuatorRequest(ctx context.Context, target PeerID, data FullActuatorData) (string, error) {
	targetLibp2p, err := target.toLibp2p()
	if err != nil {
		return "", fmt.Errorf("swarm: resolving remote peer id: %w", err)
	}

	correlationID := uuid.NewString()

	go func() {
		result := s.doSendActuatorRequest(ctx, targetLibp2p, data)
		ev := SwarmEvent{Kind: SwarmEventActuatorResponse, CorrelationID: correlationID, Result: result}
		select {
		case s.events <- ev:
		case <-s.ctx.Done():
		}
	}()

	return correlationID, nil
}

func (s *Swarm) doSendActuatorRequest(ctx context.Context, target peer.ID, data FullActuatorData) ActuationResult {
	stream, err := s.host.NewStream(ctx, target, ActuatorProtocolID)
	if err != nil {
		return ActuatorError(-500, fmt.Sprintf("failed to open stream to peer: %v", err))
	}
	defer stream.Close()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data.ToRemote()); err != nil {
		return ActuatorError(-500, fmt.Sprintf("failed to encode actuator request: %v", err))
	}
	if err := msgio.NewVarintWriter(stream).WriteMsg(buf.Bytes()); err != nil {
		return ActuatorError(-500, fmt.Sprintf("failed to send actuator request: %v", err))
	}

	respBytes, err := msgio.NewVarintReader(stream).ReadMsg()
	if err != nil {
		return ActuatorError(-500, fmt.Sprintf("failed to read actuator response: %v", err))
	}

	var remote RemoteActuationResponse
	if err := gob.NewDecoder(bytes.NewReader(respBytes)).Decode(&remote); err != nil {
		return ActuatorError(-500, fmt.Sprintf("failed to decode actuator response: %v", err))
	}
	return remote.ToResult()
}

// Events returns the channel the node loop selects on for swarm events.
func (s *Swarm) Events() <-chan SwarmEvent { return s.events }

// Close tears down the host and mDNS service.
func (s *Swarm) Close() error {
	s.cancel()
	if s.mdns != nil {
		_ = s.mdns.Close()
	}
	return s.host.Close()
}

func peerIDFromPubKey(pub p2pcrypto.PubKey) (PeerID, error) {
	raw, err := pub.Raw()
	if err != nil {
		return PeerID{}, err
	}
	if len(raw) != 32 {
		return PeerID{}, fmt.Errorf("unexpected public key length %d", len(raw))
	}
	var p PeerID
	copy(p[:], raw)
	return p, nil
}

func peerIDFromLibp2p(id peer.ID) (PeerID, error) {
	pub, err := id.ExtractPublicKey()
	if err != nil {
		return PeerID{}, fmt.Errorf("extracting public key from peer id: %w", err)
	}
	return peerIDFromPubKey(pub)
}

func (p PeerID) toLibp2p() (peer.ID, error) {
	pub, err := p2pcrypto.UnmarshalEd25519PublicKey(p[:])
	if err != nil {
		return "", fmt.Errorf("unmarshalling public key: %w", err)
	}
	return peer.IDFromPublicKey(pub)
}

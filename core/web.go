package core

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// subscriberBuffer bounds each WebSocket client's private fan-out
// channel. A full buffer means that client is lagging; the message is
// dropped and the drop is logged (the Go analogue of the original's
// broadcast::error::Lagged(n)).
const subscriberBuffer = 32

// broadcastBuffer bounds the shared broadcast channel every push first
// lands on (§4.6).
const broadcastBuffer = 512

// WebserverEvent tags a WebserverMessage variant.
type WebserverEvent string

const (
	WebserverEventSensorData   WebserverEvent = "sensor_data"
	WebserverEventPeerIdentity WebserverEvent = "peer_identity"
)

// WebserverMessage is the envelope pushed to every connected WebSocket
// client.
type WebserverMessage struct {
	Event WebserverEvent  `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type sensorDataPayload struct {
	Node string `json:"node"`
	FullSensorData
}

type peerIdentityPayload struct {
	Node string `json:"node"`
	PeerData
}

// WebBridge is the web bridge (C8): an HTTP index page and a WebSocket
// endpoint that streams an initial full-state snapshot followed by a
// live feed of sensor and identity updates.
type WebBridge struct {
	store *Store

	mu        sync.Mutex
	subs      map[chan WebserverMessage]struct{}
	broadcast chan WebserverMessage
}

func NewWebBridge(store *Store) *WebBridge {
	w := &WebBridge{
		store:     store,
		subs:      make(map[chan WebserverMessage]struct{}),
		broadcast: make(chan WebserverMessage, broadcastBuffer),
	}
	go w.fanOut()
	return w
}

func (w *WebBridge) fanOut() {
	for msg := range w.broadcast {
		w.mu.Lock()
		for ch := range w.subs {
			select {
			case ch <- msg:
			default:
				logrus.Errorf("web subscriber lagged, dropping an update")
			}
		}
		w.mu.Unlock()
	}
}

func (w *WebBridge) subscribe() chan WebserverMessage {
	ch := make(chan WebserverMessage, subscriberBuffer)
	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()
	return ch
}

func (w *WebBridge) unsubscribe(ch chan WebserverMessage) {
	w.mu.Lock()
	delete(w.subs, ch)
	w.mu.Unlock()
	close(ch)
}

// PushSensorData queues a sensor-data update for every connected client.
// node == nil means the event originated locally.
func (w *WebBridge) PushSensorData(node *PeerID, data FullSensorData) {
	nodeStr := ""
	if node != nil {
		nodeStr = node.String()
	}
	raw, err := json.Marshal(sensorDataPayload{Node: nodeStr, FullSensorData: data})
	if err != nil {
		logrus.Errorf("web: failed to encode sensor data push: %v", err)
		return
	}
	w.push(WebserverMessage{Event: WebserverEventSensorData, Data: raw})
}

// PushIdentity queues an identity update for every connected client.
func (w *WebBridge) PushIdentity(node PeerID, data PeerData) {
	raw, err := json.Marshal(peerIdentityPayload{Node: node.String(), PeerData: data})
	if err != nil {
		logrus.Errorf("web: failed to encode identity push: %v", err)
		return
	}
	w.push(WebserverMessage{Event: WebserverEventPeerIdentity, Data: raw})
}

func (w *WebBridge) push(msg WebserverMessage) {
	select {
	case w.broadcast <- msg:
	default:
		logrus.Errorf("web: broadcast channel full, dropping update")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Router builds the chi router serving the index page and the /updates
// WebSocket endpoint.
func (w *WebBridge) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", w.handleIndex)
	r.Get("/updates", w.handleUpdates)
	return r
}

func (w *WebBridge) handleIndex(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = rw.Write([]byte("<!doctype html><title>diodt</title><body>diodt node is running.</body>"))
}

func (w *WebBridge) handleUpdates(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logrus.Warnf("web: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	state := w.store.FullSystemState()
	initial, err := json.Marshal(state)
	if err != nil {
		logrus.Errorf("web: failed to encode initial state: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		logrus.Errorf("web: error while sending state to web client: %v", err)
		return
	}

	sub := w.subscribe()
	defer w.unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				logrus.Errorf("web: error while serializing message: %v", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logrus.Warnf("web: websocket send error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}

package core

import "github.com/sirupsen/logrus"

// RuleEngine evaluates incoming sensor events against a fixed ruleset
// (C5). Rules are indexed by the full (node, device, sensor) triple so
// evaluation never has to scan the whole ruleset.
type RuleEngine struct {
	rules []Rule
	index map[usidKey][]int
}

// NewRuleEngine builds the index once at load time; the ruleset itself
// never changes at runtime.
func NewRuleEngine(rules []Rule) *RuleEngine {
	logrus.Infof("loading %d rules", len(rules))

	index := make(map[usidKey][]int)
	for i, rule := range rules {
		k := rule.Sensor.key()
		index[k] = append(index[k], i)
	}

	return &RuleEngine{rules: rules, index: index}
}

func (e *RuleEngine) evaluate(identifier UniversalSensorIdentifier, input FullSensorData) []Action {
	idxs, ok := e.index[identifier.key()]
	if !ok {
		return nil
	}

	var actions []Action
	for _, idx := range idxs {
		rule := e.rules[idx]
		if rule.On.Matches(input.Value) {
			logrus.Debugf("sensor event matches rule %d, triggering", idx)
			actions = append(actions, rule.Then)
		}
	}
	return actions
}

// EvaluateLocal finds every rule watching a sensor on the local node and
// returns the actions they trigger, in declaration order.
func (e *RuleEngine) EvaluateLocal(event FullSensorData) []Action {
	return e.evaluate(localIdentifier(event.DeviceName, event.SensorName), event)
}

// EvaluateRemote is the same, for a sensor event that arrived from peer.
func (e *RuleEngine) EvaluateRemote(peer PeerID, event FullSensorData) []Action {
	return e.evaluate(remoteIdentifier(peer, event.DeviceName, event.SensorName), event)
}

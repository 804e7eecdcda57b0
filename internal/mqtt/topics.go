package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topics builds the bridge's topic names under a common prefix.
//
//	topics := mqtt.Topics{Prefix: "crossbar"}
//	topics.OutputInput(3) // crossbar/output/3/input
type Topics struct {
	Prefix string
}

// State is the retained JSON document of the whole matrix.
func (t Topics) State() string {
	return t.Prefix + "/state"
}

// Availability carries "online" or "offline" for the bridge itself; it is
// also the Last Will topic.
func (t Topics) Availability() string {
	return t.Prefix + "/availability"
}

// OutputInput is the retained input number currently feeding output n.
func (t Topics) OutputInput(n int) string {
	return fmt.Sprintf("%s/output/%d/input", t.Prefix, n)
}

// OutputSet is the command topic for output n.
func (t Topics) OutputSet(n int) string {
	return fmt.Sprintf("%s/output/%d/set", t.Prefix, n)
}

// AllOutputSets is the subscription filter matching every OutputSet topic.
func (t Topics) AllOutputSets() string {
	return t.Prefix + "/output/+/set"
}

// Refresh is the command topic that forces an immediate device read.
func (t Topics) Refresh() string {
	return t.Prefix + "/refresh"
}

// ParseOutputSet extracts the output number from an OutputSet topic.
func (t Topics) ParseOutputSet(topic string) (int, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/output/")
	if !ok {
		return 0, false
	}
	num, ok := strings.CutSuffix(rest, "/set")
	if !ok || num == "" || strings.Contains(num, "/") {
		return 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, false
	}
	return n, true
}

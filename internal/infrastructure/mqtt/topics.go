package mqtt

import "strings"

// Topic roots.
const (
	TopicPrefixPrinter = "workbench/printer"
	TopicPrefixSystem  = "workbench/system"

	commandSuffix = "/command"
)

// Topics builds Workbench topic names.
//
//	workbench/printer/{id}/state     retained printer record
//	workbench/printer/{id}/command   inbound connect/disconnect
//	workbench/printer/active         retained connected printer, or {}
//	workbench/printer/event/{kind}   lifecycle events
//	workbench/system/status          online/offline and LWT
type Topics struct{}

// PrinterState is the retained record topic for one printer.
func (Topics) PrinterState(printerID string) string {
	return TopicPrefixPrinter + "/" + printerID + "/state"
}

// PrinterCommand is where operators send "connect" or "disconnect" for one
// printer.
func (Topics) PrinterCommand(printerID string) string {
	return TopicPrefixPrinter + "/" + printerID + commandSuffix
}

// AllPrinterCommands is the filter the command listener subscribes to.
func (Topics) AllPrinterCommands() string {
	return TopicPrefixPrinter + "/+" + commandSuffix
}

// PrinterActive names the connected printer. An empty JSON object means
// none is connected.
func (Topics) PrinterActive() string {
	return TopicPrefixPrinter + "/active"
}

// PrinterEvent carries one non-retained lifecycle event, e.g.
// workbench/printer/event/printer.connected.
func (Topics) PrinterEvent(kind string) string {
	return TopicPrefixPrinter + "/event/" + kind
}

// SystemStatus doubles as the Last Will topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// CommandPrinterID extracts the printer id from a topic built by
// PrinterCommand. ok is false for any other topic.
func (Topics) CommandPrinterID(topic string) (id string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixPrinter+"/")
	if !found {
		return "", false
	}
	id, found = strings.CutSuffix(rest, commandSuffix)
	if !found || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

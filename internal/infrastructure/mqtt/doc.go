// Package mqtt connects Workbench to an MQTT broker.
//
// The broker is optional. When enabled, every committed printer change is
// mirrored onto retained topics so shop-floor displays and label stations can
// follow which printer is active without polling the REST API, and a
// command topic per printer lets them switch the active printer:
//
//	workbench/printer/{id}/state    retained printer record
//	workbench/printer/{id}/command  "connect" or "disconnect", inbound
//	workbench/printer/active        retained connected printer, or {}
//	workbench/printer/event/{kind}  lifecycle events, not retained
//	workbench/system/status         online/offline, doubles as the LWT
//
// Anyone who can publish to the command topics can switch printers, so
// restrict workbench/printer/+/command in the broker ACL. Enable TLS
// (cfg.Broker.TLS) when the broker is not on loopback.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.PrinterActive(), p.Summary(), true)
package mqtt

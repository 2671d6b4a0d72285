// Package printer provides the printer registry for Workbench.
//
// The registry tracks the network receipt and label printers the shop has
// configured and which one of them is "connected", meaning designated
// as the printer the rest of the application should address. At most one
// printer is connected at any time; zero is valid.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                            Manager                                │
//	│  • create / connect / disconnect / update / delete                │
//	│  • statusOf / statusOfConnected / test (live probes, read-only)   │
//	│  • write critical section; probes run outside it                  │
//	└──────────┬───────────────────────┬───────────────────────┬───────┘
//	           │                       │                       │
//	           ▼                       ▼                       ▼
//	┌────────────────────┐  ┌────────────────────┐  ┌────────────────────┐
//	│     Repository     │  │   probe.Dispatcher │  │     EventSinks     │
//	│  SQLite, atomic    │  │  raw9100 → TCP     │  │  WebSocket, MQTT,  │
//	│  Promote / Update- │  │  ipp → HTTP (+ /)  │  │  InfluxDB          │
//	│  Exclusive         │  └────────────────────┘  └────────────────────┘
//	└────────────────────┘
//
// # Exclusivity
//
// Promotion is "demote every other printer, then promote the target",
// applied in one SQL transaction by Repository.Promote (connect) and
// Repository.UpdateExclusive (the administrative isConnected override on
// update). A partial unique index on printers(is_connected) WHERE
// is_connected = 1 rejects any write that would leave two printers
// connected; such writes fail with ErrConflict and are rolled back.
//
// Connect probes first and only writes on success. A failed probe returns
// *UnreachableError and leaves every row unchanged.
//
// # Status versus intent
//
// IsConnected records which printer the shop chose. Status reports whether
// it answers right now. StatusOf never modifies the flag, so a printer
// that was switched off stays connected until someone disconnects it.
//
// # Usage
//
//	repo := printer.NewSQLiteRepository(db.DB)
//	mgr := printer.NewManager(repo, probe.NewDispatcher(probe.Config{}))
//	mgr.SetLogger(log)
//
//	p, res, err := mgr.Create(ctx, printer.CreateInput{Fields: printer.Fields{
//	    Name: "Label", Host: "10.0.0.5", Protocol: probe.ProtocolRaw9100,
//	}})
//	var unreachable *printer.UnreachableError
//	if errors.As(err, &unreachable) {
//	    // show unreachable.Result, offer Force
//	}
//
//	p, res, err = mgr.Connect(ctx, p.ID)
package printer

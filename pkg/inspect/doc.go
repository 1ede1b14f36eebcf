// Package inspect serves a read-mostly HTTP view of a hooks.Host.
//
// Routes:
//
//	GET  /healthz                  liveness check
//	GET  /instances                mounted instances
//	GET  /instances/{id}           one instance with its slots and recent events
//	POST /instances/{id}/render    queue a render and flush the host; 200 with
//	                               the committed view, or 202 with the current
//	                               view when another loop is mid-flush and
//	                               will commit the render later
//	GET  /events                   recent events, oldest first
//	GET  /events/ws                live event stream over WebSocket
//	GET  /metrics                  Prometheus metrics
//
// An Inspector is also a hooks.Observer; attach it to the host it serves so
// that the event routes see the host's events:
//
//	ins := inspect.New(host, inspect.WithGatherer(reg))
//	host.AddObserver(ins)
//	http.ListenAndServe(":7070", ins.Handler())
package inspect

// Package transport ships placed edge records to their owning machines.
//
// Local delivers in-process into per-machine sinks. NATS publishes records
// on one subject per machine, and Receiver consumes the local machine's
// subject into a sink:
//
//	<prefix>.edges.<machine>
//
// Every record travels as a small binary message built by EncodeRecord.
// Flush on the sending side publishes an end-of-stream marker to every
// machine; a Receiver finalizes its sink once markers from all machines
// have arrived. NATS keeps per-connection publish order, so a marker is
// always seen after the records its sender published before it.
package transport

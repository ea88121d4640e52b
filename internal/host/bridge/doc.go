// Package bridge drives one external host process over a line-delimited
// JSON protocol on the child's stdio.
//
// The worker launches the host with a bridge script that reads one request
// per line from stdin and answers on stdout. The host-side half lives in the
// embedded bridge.py, which `brickforge config init` installs; a custom
// script at the configured path is used as-is. Anything the host prints that
// is not a protocol frame is forwarded to the worker's logger, so plugin
// chatter ends up in the captured job log instead of corrupting the
// protocol stream.
package bridge

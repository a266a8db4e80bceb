// Package discovery finds controllers on the local network with mDNS/DNS-SD.
//
// Controllers (and the simulator) advertise ServiceType (_mled._tcp) on the
// port that serves the websocket endpoint. Instance names are
// "mled-<name>". TXT records:
//
//	p=led|fieldbus   wire protocol variant (required)
//	path=/ws         websocket path (optional, default /ws)
//	DN=<name>        user-facing name (optional)
//	v=<version>      firmware or simulator version (optional)
//
// A controller reachable on several interfaces is reported once, with the
// addresses of all interfaces merged.
package discovery

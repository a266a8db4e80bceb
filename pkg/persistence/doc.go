// Package persistence keeps client state across restarts: the controller
// used last and the controllers seen via discovery.
//
// The strip/zone configuration itself is never persisted on the client;
// the controller is the source of truth and resends it on every connect.
package persistence

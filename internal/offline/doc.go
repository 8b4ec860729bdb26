// Package offline keeps transactions flowing when the backend is out of
// reach.
//
// Submitter tries the remote API first and falls back to the local queue.
// Engine drains that queue in FIFO order, one pass at a time. Monitor watches
// network and backend reachability and starts a drain when both come back.
package offline

// Package replica synchronizes a follower database from an
// authoritative source by shipping whole batches.
//
// The protocol is deliberately primitive: a follower may only ever be a
// prefix of its source. Sync compares the two catalogs record by record
// (sequence, name and checksum must all agree) and transfers the
// batches the follower is missing, one at a time, each staged and
// checksum-verified before it is committed. Because every batch commits
// individually, an interrupted sync resumes where it stopped.
//
// Any mismatch inside the shared prefix means the two histories have
// diverged - typically because one side was rolled back independently.
// Sync then refuses to touch the follower and reports DivergentHistory;
// reconciling diverged replicas is an operator decision, never an
// automatic merge.
package replica

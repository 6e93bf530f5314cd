package mutation

import (
	"context"
)

// Create builds a mutation that inserts item under tempID right away and
// swaps the placeholder for the server's entity (with its real id) on success.
func Create[T Entity[T]](col *Collection[T], tempID string, item T, commit func(ctx context.Context, item T) (T, error)) Mutation[T] {
	return Mutation[T]{
		Target:   col.Target(tempID),
		Snapshot: func() func() { return col.SnapshotItem(tempID) },
		Apply:    func() { col.Append(item.WithID(tempID)) },
		Commit: func(ctx context.Context) (T, error) {
			return commit(ctx, item)
		},
		Reconcile: func(created T) {
			if !col.ReplaceID(tempID, created) {
				col.Put(created)
			}
		},
	}
}

// Update builds a mutation that applies change locally and, on success,
// merges the server's (possibly partial) answer into the local entity.
// A nil merge takes the server's entity as is.
func Update[T Entity[T]](col *Collection[T], id string, change func(T) T, commit func(ctx context.Context) (T, error), merge func(local, server T) T) Mutation[T] {
	if merge == nil {
		merge = func(_, server T) T { return server }
	}
	return Mutation[T]{
		Target:   col.Target(id),
		Snapshot: func() func() { return col.SnapshotItem(id) },
		Apply:    func() { col.Update(id, change) },
		Commit:   commit,
		Reconcile: func(server T) {
			col.Update(id, func(local T) T { return merge(local, server) })
		},
	}
}

// Delete builds a mutation that removes the entity locally and restores it,
// at its old position, if the server refuses.
func Delete[T Entity[T]](col *Collection[T], id string, commit func(ctx context.Context) error) Mutation[struct{}] {
	return Mutation[struct{}]{
		Target:   col.Target(id),
		Snapshot: func() func() { return col.SnapshotItem(id) },
		Apply:    func() { col.Remove(id) },
		Commit: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, commit(ctx)
		},
	}
}

// WithRefetch switches m to full-refetch-on-failure: no snapshot is kept and
// a failed commit reloads state through refetch instead.
func WithRefetch[T any](m Mutation[T], refetch func(ctx context.Context) error) Mutation[T] {
	m.Snapshot = nil
	m.Refetch = refetch
	return m
}

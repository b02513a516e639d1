package counters

import "context"

// Store is the counter database. Every operation goes through a chat Partition.
type Store interface {
	Chat(chatID int64) Partition
	Stats(ctx context.Context) (Stats, error)
}

// Partition is the set of counters visible to a single chat.
type Partition interface {
	Create(ctx context.Context, name string, initial int64) (int64, error)
	// List returns counters in creation order.
	List(ctx context.Context) ([]Counter, error)
	Get(ctx context.Context, id int64) (Counter, error)
	// IncrementBy adds delta and returns the committed value.
	IncrementBy(ctx context.Context, id, delta int64) (int64, error)
	SetValue(ctx context.Context, id, value int64) error
	Delete(ctx context.Context, id int64) error
}

// Stats summarizes the whole store.
type Stats struct {
	Counters int64 `db:"counters"`
	Chats    int64 `db:"chats"`
}

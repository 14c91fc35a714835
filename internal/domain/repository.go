package domain

import "context"

type AlarmRepository interface {
	Insert(ctx context.Context, a Alarm) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]Alarm, error)
}

type StatusRepository interface {
	Insert(ctx context.Context, c StatusChange) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]StatusChange, error)
}

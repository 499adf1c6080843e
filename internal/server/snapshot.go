package server

import (
	"github.com/amirphl/marketboard/internal/query"
	"github.com/amirphl/marketboard/internal/remote"
)

// Snapshot is the websocket frame for one query state.
type Snapshot[T any] struct {
	Data      *T                   `json:"data,omitempty"`
	Loading   bool                 `json:"loading"`
	Stale     bool                 `json:"stale"`
	Error     *remote.ErrorPayload `json:"error,omitempty"`
	UpdatedAt int64                `json:"updatedAt,omitempty"`
}

func NewSnapshot[T any](st query.State[T]) Snapshot[T] {
	snap := Snapshot[T]{
		Loading: st.Loading,
		Stale:   st.Stale(),
	}
	if st.HasData {
		data := st.Data
		snap.Data = &data
		snap.UpdatedAt = st.UpdatedAt.UnixMilli()
	}
	if st.Err != nil {
		payload := remote.NewErrorPayload(st.Err)
		snap.Error = &payload
	}
	return snap
}

package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"maestro/internal/domain"
	"maestro/internal/repo"
)

// Writer appends interaction events inside the caller's transaction.
type Writer struct {
	Repo repo.Repo
	Now  func() time.Time
}

type Metadata map[string]any

func (w Writer) Append(ctx context.Context, tx *sqlx.Tx, interactionID, actorID, evtType, text string, meta Metadata) (domain.InteractionEvent, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	if meta == nil {
		meta = Metadata{}
	}
	ev := domain.InteractionEvent{
		ID:            uuid.NewString(),
		InteractionID: interactionID,
		ActorID:       actorID,
		Type:          evtType,
		Text:          text,
		Metadata:      meta,
		CreatedAt:     w.Now().UTC().Format(time.RFC3339),
	}
	if err := w.Repo.InsertEventTx(ctx, tx, ev); err != nil {
		return domain.InteractionEvent{}, err
	}
	return ev, nil
}

// StatusChange records an aggregate status move.
func (w Writer) StatusChange(ctx context.Context, tx *sqlx.Tx, interactionID, actorID, from, to string, meta Metadata) error {
	if meta == nil {
		meta = Metadata{}
	}
	meta["from_status"] = from
	meta["to_status"] = to
	_, err := w.Append(ctx, tx, interactionID, actorID, domain.EventStatusChange, "status "+from+" -> "+to, meta)
	return err
}

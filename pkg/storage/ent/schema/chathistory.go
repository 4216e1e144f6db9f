package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	entschema "entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ChatHistory holds the schema definition for one persisted conversation
// message. Rows are append-only and keyed by message_id.
type ChatHistory struct {
	ent.Schema
}

// Annotations of the ChatHistory.
func (ChatHistory) Annotations() []entschema.Annotation {
	return []entschema.Annotation{
		entsql.Annotation{Table: "chat_histories"},
	}
}

// Fields of the ChatHistory.
func (ChatHistory) Fields() []ent.Field {
	return []ent.Field{
		// seq is the auto-incrementing primary key. It breaks created_at
		// ties so rows come back in insertion order.
		field.Int("id").
			StorageKey("seq").
			Immutable(),

		// message_id makes inserts idempotent
		field.String("message_id").
			Unique().
			Immutable().
			NotEmpty(),

		// from_id is the owning user
		field.String("from_id").
			Immutable().
			NotEmpty(),

		field.Bool("is_bot").
			Default(false).
			Immutable(),

		field.Text("text").
			Immutable(),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the ChatHistory.
func (ChatHistory) Indexes() []ent.Index {
	return []ent.Index{
		// History reads one user's rows in order
		index.Fields("from_id", "created_at", "id"),
	}
}

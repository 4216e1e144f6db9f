package entdriver

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	sqlschema "entgo.io/ent/dialect/sql/schema"

	"github.com/papercomputeco/memoir/pkg/storage/ent/schema"
)

// ChatHistoriesTable builds the migration table from the ChatHistory schema
// so the ent definition stays the single source of truth for columns and
// indexes.
func ChatHistoriesTable() (*sqlschema.Table, error) {
	def := schema.ChatHistory{}

	name := "chat_histories"
	for _, a := range def.Annotations() {
		if ant, ok := a.(entsql.Annotation); ok && ant.Table != "" {
			name = ant.Table
		}
	}

	table := sqlschema.NewTable(name)
	columns := make(map[string]string)

	for _, f := range def.Fields() {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("chat history field %q: %w", d.Name, d.Err)
		}

		col := &sqlschema.Column{
			Name:       d.Name,
			Type:       d.Info.Type,
			Size:       int64(d.Size),
			Unique:     d.Unique,
			Nullable:   d.Optional,
			SchemaType: d.SchemaType,
		}
		if d.StorageKey != "" {
			col.Name = d.StorageKey
		}
		columns[d.Name] = col.Name

		if d.Name == "id" {
			col.Increment = true
			table.AddPrimary(col)
			continue
		}
		table.AddColumn(col)
	}

	for _, idx := range def.Indexes() {
		d := idx.Descriptor()
		cols := make([]string, 0, len(d.Fields))
		for _, f := range d.Fields {
			col, ok := columns[f]
			if !ok {
				return nil, fmt.Errorf("chat history index references unknown field %q", f)
			}
			cols = append(cols, col)
		}

		idxName := d.StorageKey
		if idxName == "" {
			idxName = "chathistory_" + strings.Join(cols, "_")
		}
		table.AddIndex(idxName, d.Unique, cols)
	}

	return table, nil
}

// Migrate runs ent's auto-migration for the chat history table. It only
// applies additive changes.
func Migrate(ctx context.Context, drv dialect.Driver) error {
	table, err := ChatHistoriesTable()
	if err != nil {
		return err
	}

	m, err := sqlschema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Create(ctx, table); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

package database

import (
	"testing"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateBuilder_AssignClosure(t *testing.T) {
	// Repositories build updates by handing the wrapped builder to an
	// assignment closure; the wrapper must carry the full Assign/Where surface.
	assign := func(ub *UpdateBuilder) string {
		return ub.Assign("name", "Order replies")
	}

	ub := NewUpdateBuilder()
	ub.Update("automations").
		Set(
			assign(ub),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", "some-id"))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	assert.Contains(t, query, "UPDATE automations")
	assert.Contains(t, query, "name = ")
	assert.Contains(t, query, "updated_at = NOW()")
	assert.Contains(t, query, "RETURNING updated_at")
	require.Len(t, args, 2)
	assert.Equal(t, "Order replies", args[0])
}

func TestInsertBuilder_OnConflict(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("listeners").
		Cols("id", "automation_id", "prompt").
		Values("l1", "a1", "hello")
	ub := ib.OnConflict("automation_id")
	ub.Set(ub.Assign("prompt", Excluded("prompt")))

	query, _ := ib.Build()
	assert.Contains(t, query, "ON CONFLICT (automation_id) DO UPDATE")
	assert.Contains(t, query, "prompt = EXCLUDED.prompt")
}

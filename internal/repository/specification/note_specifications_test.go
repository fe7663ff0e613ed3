package specification

import (
	"testing"

	"ai-notetaking-agent/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "groceries", want: "groceries"},
		{in: "_", want: `\_`},
		{in: "%", want: `\%`},
		{in: `50%_off`, want: `50\%\_off`},
		{in: `C:\notes`, want: `C:\\notes`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeLike(tt.in))
		})
	}
}

func TestContentSearchMatchesLiterally(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=agent dbname=agent sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	stmt := ContentSearch{Query: "_"}.Apply(db.Model(&model.Note{})).Find(&[]model.Note{}).Statement

	assert.Contains(t, stmt.SQL.String(), "ILIKE")
	assert.Contains(t, stmt.SQL.String(), `ESCAPE '\'`)
	assert.Contains(t, stmt.Vars, `%\_%`)
}
